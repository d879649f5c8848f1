package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/normanking/streamavatar/internal/avatar3d"
	"github.com/normanking/streamavatar/internal/config"
	"github.com/normanking/streamavatar/internal/gesture"
)

// ═══════════════════════════════════════════════════════════════════════════════
// GESTURE COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func gestureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gesture",
		Short: "Inspect gesture recordings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <name>",
		Short: "Fetch one recording and print a summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			source, err := newGestureSource(cfg.Gesture)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if cfg.Gesture.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Gesture.Timeout)
				defer cancel()
			}
			rec, err := source.Load(ctx, args[0])
			if err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}
			printRecording(cmd.OutOrStdout(), args[0], rec)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List gestures available from a file or glTF source",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			names, err := listGestures(cfg.Gesture)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	})

	return cmd
}

func printRecording(out io.Writer, name string, rec *gesture.Recording) {
	fmt.Fprintf(out, "Gesture:   %s\n", name)
	if rec.ID != "" {
		fmt.Fprintf(out, "ID:        %s\n", rec.ID)
	}
	if rec.Label != "" {
		fmt.Fprintf(out, "Label:     %s\n", rec.Label)
	}
	fmt.Fprintf(out, "Kind:      %s\n", avatar3d.GestureKindFor(name))
	fmt.Fprintf(out, "Samples:   %d\n", len(rec.Samples))
	fmt.Fprintf(out, "Duration:  %.3fs\n", rec.Duration)
	if rec.Empty() {
		return
	}
	first, last := rec.Samples[0].Q, rec.Samples[len(rec.Samples)-1].Q
	fmt.Fprintf(out, "First:     w=%.3f x=%.3f y=%.3f z=%.3f\n", first.W, first.X(), first.Y(), first.Z())
	fmt.Fprintf(out, "Last:      w=%.3f x=%.3f y=%.3f z=%.3f\n", last.W, last.X(), last.Y(), last.Z())
}

func listGestures(cfg config.GestureConfig) ([]string, error) {
	switch cfg.Source {
	case config.SourceGLTF:
		names, err := gesture.NewGLTFSource(cfg.GLTFPath).Names()
		if err != nil {
			return nil, err
		}
		sort.Strings(names)
		return names, nil
	case config.SourceFile:
		matches, err := filepath.Glob(filepath.Join(cfg.Dir, "*.json"))
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, strings.TrimSuffix(filepath.Base(m), ".json"))
		}
		sort.Strings(names)
		return names, nil
	default:
		return nil, fmt.Errorf("the %s source cannot list gestures", cfg.Source)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// EMOTES COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func emotesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "emotes",
		Short: "List accepted emote keys",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Emotes:")
			for _, key := range []string{avatar3d.EmoteWink, avatar3d.EmoteBlink, avatar3d.EmoteSleep, avatar3d.EmoteWake} {
				fmt.Fprintf(out, "  %s\n", key)
			}
			fmt.Fprintln(out, "Expressions:")
			for _, name := range avatar3d.ExpressionNames() {
				g, _ := avatar3d.LookupExpression(name)
				fmt.Fprintf(out, "  %-11s %s %s %s\n", name, g.LeftEye, g.Mouth, g.RightEye)
			}
		},
	}
}
