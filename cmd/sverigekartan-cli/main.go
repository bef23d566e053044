// 命令行入口：批量归属、坐标转换、单点判定与地名搜索
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sverigekartan/internal/app"
	"sverigekartan/internal/batch"
	"sverigekartan/internal/config"
	"sverigekartan/internal/coordsys"
	"sverigekartan/internal/logger"
	"sverigekartan/internal/resolver"
	"sverigekartan/internal/sheet"
	"sverigekartan/internal/version"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load(".env")
	logger.Setup()

	rootCmd := &cobra.Command{
		Use:   "sverigekartan-cli",
		Short: "Swedish administrative region attribution",
		Long: `Attributes coordinates to län, kommun, landskap and socken using
boundary polygons, converts between WGS84, RT90 2.5 gon V and SWEREF99 TM,
and looks up places through Nominatim.

Configuration is read from the environment (.env supported):
BOUNDARY_DIR, BOUNDARY_LAYERS, GEOCODE_ENABLED, NOMINATIM_URL, ...`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(attributeCmd())
	rootCmd.AddCommand(convertCmd())
	rootCmd.AddCommand(resolveCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(layersCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadApp：读取配置并等待边界数据加载完成
func loadApp(ctx context.Context, timeout time.Duration, mutate func(*config.Config)) (*app.App, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := a.Catalog.Wait(wctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func attributeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attribute <input.xlsx|input.csv>",
		Short: "Attribute every row of a spreadsheet and write geo-resultat.xlsx",
		Long: `Reads a spreadsheet with lat/lon columns, resolves each row against all
configured boundary layers and writes the result workbook (sheets Resultat and Info).

Example:
  sverigekartan-cli attribute punkter.xlsx --out geo-resultat.xlsx --geocode`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			geocodeOn, _ := cmd.Flags().GetBool("geocode")
			concurrency, _ := cmd.Flags().GetInt("concurrency")
			timeout, _ := cmd.Flags().GetDuration("load-timeout")

			rows, err := sheet.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "no data rows, nothing written")
				return nil
			}
			a, err := loadApp(cmd.Context(), timeout, func(c *config.Config) {
				if cmd.Flags().Changed("geocode") {
					c.GeocodeEnabled = geocodeOn
				}
				if concurrency > 0 {
					c.GeocodeConcurrency = concurrency
				}
			})
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Pipeline.Process(cmd.Context(), rows)
			if err != nil {
				return err
			}
			if out == "" {
				out = filepath.Join(filepath.Dir(args[0]), sheet.FileName)
			}
			prov := sheet.Provenance{Layers: a.Catalog.Layers(), LoadedAt: a.Catalog.LoadedAt(), GeocodeSource: a.GeocodeSource()}
			if err := sheet.WriteFile(out, res, prov); err != nil {
				if errors.Is(err, batch.ErrEmptyBatch) {
					fmt.Fprintln(cmd.ErrOrStderr(), "no data rows, nothing written")
					return nil
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d rows, %d matched, %d out of range, %d without polygon match, %d address failures\n",
				out, res.Stats.Total, res.Stats.Matched, res.Stats.OutOfRange, res.Stats.NoMatch, res.Stats.GeocodeFailed)
			return nil
		},
	}
	cmd.Flags().StringP("out", "o", "", "output workbook (default: geo-resultat.xlsx next to the input)")
	cmd.Flags().Bool("geocode", false, "look up address and country per row (overrides GEOCODE_ENABLED)")
	cmd.Flags().Int("concurrency", 0, "address lookups in flight (overrides GEOCODE_CONCURRENCY)")
	cmd.Flags().Duration("load-timeout", 2*time.Minute, "maximum wait for boundary data")
	return cmd
}

func convertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <coordinate pair>",
		Short: "Convert a coordinate pair to WGS84, RT90 and SWEREF99 TM",
		Long: `Pairs are given in display order (latitude/northing first), separated by
comma or whitespace. The input system is detected from the magnitude unless --from is set.

Example:
  sverigekartan-cli convert "6580000 1628000"
  sverigekartan-cli convert 59.3293,18.0686`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, _ := cmd.Flags().GetString("from")
			p, err := coordsys.ParsePair(strings.Join(args, " "))
			if err != nil {
				return err
			}
			var sys coordsys.System
			if from != "" {
				sys, err = coordsys.ParseSystem(from)
			} else {
				sys, err = coordsys.Detect(p)
			}
			if err != nil {
				return err
			}
			all, err := coordsys.ConvertToAll(p.Point(), sys)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "input: %s\n", sys)
			for _, s := range coordsys.Systems {
				fmt.Fprintf(w, "%-9s EPSG:%d  %s\n", s, s.EPSG(), coordsys.PairOf(all.Get(s)).Format(s))
			}
			return nil
		},
	}
	cmd.Flags().String("from", "", "input system (WGS84, RT90, SWEREF99 or EPSG code)")
	return cmd
}

func resolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <lat> <lon>",
		Short: "Resolve one WGS84 point against the boundary layers",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			layers, _ := cmd.Flags().GetStringSlice("layers")
			timeout, _ := cmd.Flags().GetDuration("load-timeout")
			p, err := coordsys.ParsePair(args[0] + " " + args[1])
			if err != nil {
				return err
			}
			a, err := loadApp(cmd.Context(), timeout, nil)
			if err != nil {
				return err
			}
			defer a.Close()
			v := a.Validator.Validate(p.First, p.Second)
			if !v.InScope {
				return printJSON(cmd.OutOrStdout(), map[string]any{"in_scope": false, "manual_review": v.Reason})
			}
			pt := p.Point()
			var rec resolver.Record
			if len(layers) > 0 {
				rec, err = a.Resolver.ResolveScoped(pt, layers)
			} else {
				rec, err = a.Resolver.ResolveAll(pt)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().StringSlice("layers", nil, "only these layer kinds (default: all)")
	cmd.Flags().Duration("load-timeout", 2*time.Minute, "maximum wait for boundary data")
	return cmd
}

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <place name>",
		Short: "Search for a place through Nominatim",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			country, _ := cmd.Flags().GetString("country")
			limit, _ := cmd.Flags().GetInt("limit")
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			cfg.Layers = nil
			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.Searcher == nil {
				return errors.New("place search disabled (NOMINATIM_URL=off)")
			}
			if limit <= 0 {
				limit = cfg.SearchLimit
			}
			places, err := a.Searcher.Search(cmd.Context(), strings.Join(args, " "), a.Scope.Country(country, ""), limit)
			if err != nil {
				return err
			}
			for _, p := range places {
				fmt.Fprintf(cmd.OutOrStdout(), "%.5f, %.5f  %s\n", p.Lat, p.Lon, p.Name)
			}
			return nil
		},
	}
	cmd.Flags().String("country", "", "ISO country code (default SEARCH_COUNTRY)")
	cmd.Flags().Int("limit", 0, "maximum results (default SEARCH_LIMIT)")
	return cmd
}

func layersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layers",
		Short: "Load the configured boundary layers and print feature counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			timeout, _ := cmd.Flags().GetDuration("load-timeout")
			a, err := loadApp(cmd.Context(), timeout, nil)
			if err != nil {
				return err
			}
			defer a.Close()
			for _, l := range a.Catalog.Layers() {
				ds, _ := a.Catalog.Dataset(l.Kind)
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %-20s %6d  %s\n", l.Kind, l.AttributeKey, ds.Len(), l.Source)
			}
			return nil
		},
	}
	cmd.Flags().Duration("load-timeout", 2*time.Minute, "maximum wait for boundary data")
	return cmd
}
