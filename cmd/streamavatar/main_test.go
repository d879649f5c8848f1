package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/streamavatar/internal/config"
	"github.com/normanking/streamavatar/internal/gesture"
)

const nodJSON = `{"id":"nod-1","label":"Nod","samples":[
	{"t":0,"x":0,"y":0,"z":0,"w":1},
	{"t":0.5,"x":0.2,"y":0,"z":0,"w":1},
	{"t":1,"x":0,"y":0,"z":0,"w":1}
]}`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgPath, verbose = "", false

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// writeFileConfig writes a config selecting a file source rooted at a fresh
// directory holding nod.json.
func writeFileConfig(t *testing.T) (cfgFile, dir string) {
	t.Helper()
	root := t.TempDir()
	dir = filepath.Join(root, "gestures")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nod.json"), []byte(nodJSON), 0o644))

	cfg := config.DefaultConfig()
	cfg.Gesture.Source = config.SourceFile
	cfg.Gesture.Dir = dir
	cfgFile = filepath.Join(root, "config.yaml")
	require.NoError(t, config.Save(cfg, cfgFile))
	return cfgFile, dir
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "streamavatar v"+version+"\n", out)
}

func TestEmotes(t *testing.T) {
	out, err := execute(t, "emotes")
	require.NoError(t, err)
	assert.Contains(t, out, "wink")
	assert.Contains(t, out, "wake")
	assert.Contains(t, out, "starstruck")
}

func TestGestureShow(t *testing.T) {
	cfgFile, _ := writeFileConfig(t)

	out, err := execute(t, "--config", cfgFile, "gesture", "show", "nod")
	require.NoError(t, err)
	assert.Contains(t, out, "ID:        nod-1")
	assert.Contains(t, out, "Kind:      affirmative")
	assert.Contains(t, out, "Samples:   3")
	assert.Contains(t, out, "Duration:  1.000s")
}

func TestGestureShow_Missing(t *testing.T) {
	cfgFile, _ := writeFileConfig(t)

	_, err := execute(t, "--config", cfgFile, "gesture", "show", "shrug")
	assert.ErrorIs(t, err, gesture.ErrNotFound)
}

func TestGestureList(t *testing.T) {
	cfgFile, dir := writeFileConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shake.json"), []byte(nodJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	out, err := execute(t, "--config", cfgFile, "gesture", "list")
	require.NoError(t, err)
	assert.Equal(t, "nod\nshake\n", out)
}

func TestListGestures_HTTPUnsupported(t *testing.T) {
	_, err := listGestures(config.DefaultConfig().Gesture)
	assert.Error(t, err)
}

func TestNewGestureSource(t *testing.T) {
	cfg := config.DefaultConfig().Gesture

	src, err := newGestureSource(cfg)
	require.NoError(t, err)
	assert.IsType(t, &gesture.HTTPSource{}, src)

	cfg.Source = config.SourceFile
	src, err = newGestureSource(cfg)
	require.NoError(t, err)
	assert.IsType(t, &gesture.FileSource{}, src)

	cfg.Source = config.SourceGLTF
	src, err = newGestureSource(cfg)
	require.NoError(t, err)
	assert.IsType(t, &gesture.GLTFSource{}, src)

	cfg.Source = "ftp"
	_, err = newGestureSource(cfg)
	assert.Error(t, err)
}

func TestControllerConfig(t *testing.T) {
	a := config.DefaultConfig().Animation
	c := controllerConfig(a)
	assert.Equal(t, float32(0.1), c.MaxDelta)
	assert.Equal(t, float32(0.8), c.EntranceDuration)
	assert.Equal(t, float32(3), c.BlinkMinInterval)
	assert.Equal(t, float32(5), c.BlinkMaxInterval)
	assert.Equal(t, 6.0, c.SpeakingHz)
}

func TestNewRand_SeedIsDeterministic(t *testing.T) {
	assert.Equal(t, newRand(42).Int63(), newRand(42).Int63())
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := execute(t, "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg, _, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Server.Addr, cfg.Server.Addr)

	_, err = execute(t, "--config", path, "config", "init")
	assert.Error(t, err, "init never overwrites")
}
