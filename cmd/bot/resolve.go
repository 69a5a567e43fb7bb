package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/byNolo/nolofication/internal/api"
	"github.com/byNolo/nolofication/internal/domain"
	"github.com/byNolo/nolofication/internal/resolver"
)

type resolveOptions struct {
	global     string
	site       string
	categories string
	next       bool
}

// resolveOutput is the effective view, optionally with the next digest per category.
type resolveOutput struct {
	domain.EffectivePreference
	NextDelivery map[string]time.Time `json:"next_delivery,omitempty"`
}

func newResolveCmd() *cobra.Command {
	var o resolveOptions
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the effective preferences for the given documents",
		Long: "Reads the global, site and category-list documents as returned by the API " +
			"and prints the resolved channels and category schedules as JSON. Use - to read a document from stdin.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runResolve(cmd.InOrStdin(), cmd.OutOrStdout(), o, time.Now().UTC())
		},
	}
	cmd.Flags().StringVar(&o.global, "global", "", "global preferences document")
	cmd.Flags().StringVar(&o.site, "site", "", "site preferences document (optional)")
	cmd.Flags().StringVar(&o.categories, "categories", "", "category list document (optional)")
	cmd.Flags().BoolVar(&o.next, "next", false, "include the next digest time of each enabled category")
	_ = cmd.MarkFlagRequired("global")
	return cmd
}

func runResolve(stdin io.Reader, out io.Writer, o resolveOptions, now time.Time) error {
	read := func(path string) ([]byte, error) {
		if path == "-" {
			return io.ReadAll(stdin)
		}
		return os.ReadFile(path)
	}

	raw, err := read(o.global)
	if err != nil {
		return fmt.Errorf("read global: %w", err)
	}
	var global domain.GlobalPreferences
	if err := json.Unmarshal(raw, &global); err != nil {
		return fmt.Errorf("decode global: %w", err)
	}

	var site *domain.SitePreferences
	if o.site != "" {
		raw, err := read(o.site)
		if err != nil {
			return fmt.Errorf("read site: %w", err)
		}
		site = &domain.SitePreferences{}
		if err := json.Unmarshal(raw, site); err != nil {
			return fmt.Errorf("decode site: %w", err)
		}
	}

	var cats []domain.CategoryEntry
	if o.categories != "" {
		raw, err := read(o.categories)
		if err != nil {
			return fmt.Errorf("read categories: %w", err)
		}
		if cats, err = api.DecodeCategoryList(raw); err != nil {
			return fmt.Errorf("decode categories: %w", err)
		}
	}

	res := resolveOutput{EffectivePreference: resolver.Resolve(global.Channels, site, cats)}
	if o.next {
		res.NextDelivery = make(map[string]time.Time, len(res.Categories))
		for key, c := range res.Categories {
			if c.Enabled {
				res.NextDelivery[key] = domain.NextDelivery(now, c.Schedule)
			}
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
