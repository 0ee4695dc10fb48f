package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jimezsa/jobparser/internal/seen"
)

type SeenCmd struct {
	Diff   SeenDiffCmd   `cmd:"" help:"Write listings not yet in the seen history to JSON."`
	Update SeenUpdateCmd `cmd:"" help:"Merge listings into the seen history JSON."`
}

type SeenDiffCmd struct {
	New   string `name:"new" required:"" help:"Crawl output to compare: JSON array or JSON lines from --stream."`
	Seen  string `name:"seen" required:"" help:"Path to seen listings JSON file. A missing file is treated as empty."`
	Out   string `name:"out" required:"" help:"Output path for unseen listings JSON."`
	Stats bool   `name:"stats" help:"Print comparison stats."`
}

type SeenUpdateCmd struct {
	Seen  string `name:"seen" required:"" help:"Path to seen listings JSON file. A missing file is treated as empty."`
	Input string `name:"input" required:"" help:"Listings to merge: JSON array or JSON lines from --stream."`
	Out   string `name:"out" help:"Output path for the updated history. Defaults to --seen."`
	Stats bool   `name:"stats" help:"Print merge stats."`
}

// stat is one counter of a seen report, printed in declaration order.
type stat struct {
	name  string
	value int
}

func (c *SeenDiffCmd) Run(ctx *Context) error {
	if pathsEqual(c.Out, c.Seen) {
		return fmt.Errorf("--out path must differ from --seen")
	}
	newListings, err := seen.ReadListings(c.New)
	if err != nil {
		return fmt.Errorf("read --new: %w", err)
	}
	seenListings, err := seen.ReadListingsAllowMissing(c.Seen)
	if err != nil {
		return fmt.Errorf("read --seen: %w", err)
	}

	unseenListings, stats := seen.Diff(newListings, seenListings)
	if err := seen.WriteListings(c.Out, unseenListings); err != nil {
		return fmt.Errorf("write --out: %w", err)
	}
	ctx.Logger.Debug().Str("out", c.Out).Int("unseen", stats.Unseen).Msg("seen diff written")

	if !c.Stats {
		return nil
	}
	return writeStats(ctx, []stat{
		{"total_new", stats.TotalNew},
		{"total_seen", stats.TotalSeen},
		{"invalid_skipped", stats.InvalidSkipped()},
		{"unseen_emitted", stats.Unseen},
	})
}

func (c *SeenUpdateCmd) Run(ctx *Context) error {
	seenListings, err := seen.ReadListingsAllowMissing(c.Seen)
	if err != nil {
		return fmt.Errorf("read --seen: %w", err)
	}
	inputListings, err := seen.ReadListings(c.Input)
	if err != nil {
		return fmt.Errorf("read --input: %w", err)
	}

	mergedListings, stats := seen.Merge(seenListings, inputListings)
	out := firstNonEmpty(c.Out, c.Seen)
	if err := seen.WriteListings(out, mergedListings); err != nil {
		return fmt.Errorf("write --out: %w", err)
	}
	ctx.Logger.Debug().Str("out", out).Int("added", stats.Added).Msg("seen history updated")

	if !c.Stats {
		return nil
	}
	return writeStats(ctx, []stat{
		{"total_seen", stats.TotalSeen},
		{"total_input", stats.TotalInput},
		{"invalid_skipped", stats.InvalidSkipped()},
		{"added", stats.Added},
		{"total_out", stats.TotalOut},
	})
}

// writeStats prints counters as key=value pairs, or as a JSON object with
// --json.
func writeStats(ctx *Context, stats []stat) error {
	if ctx.JSONOutput {
		values := make(map[string]int, len(stats))
		for _, s := range stats {
			values[s.name] = s.value
		}
		return json.NewEncoder(ctx.Out).Encode(values)
	}

	parts := make([]string, 0, len(stats))
	for _, s := range stats {
		parts = append(parts, fmt.Sprintf("%s=%d", s.name, s.value))
	}
	_, err := fmt.Fprintln(ctx.Out, strings.Join(parts, " "))
	return err
}
