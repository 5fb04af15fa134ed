package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/awaistahir/okte-windows/internal/config"
	"github.com/awaistahir/okte-windows/internal/engine"
	"github.com/awaistahir/okte-windows/internal/prices"
	"github.com/awaistahir/okte-windows/internal/report"
	"github.com/awaistahir/okte-windows/internal/store"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	dbPath  string
	cfg     *config.Config
)

func main() {
	decimal.MarshalJSONWithoutQuotes = true

	rootCmd := &cobra.Command{
		Use:   "okte",
		Short: "OKTE - find the cheapest and most expensive price windows",
		Long: `okte fetches Slovak day-ahead electricity prices from OKTE and finds
the contiguous windows of 15-minute periods with the lowest or highest
average price.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.okte/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default is $HOME/.okte/okte.db)")

	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(windowCmd())
	rootCmd.AddCommand(settingsCmd())
	rootCmd.AddCommand(calculatorsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if dbPath == "" {
		dbPath = cfg.DB
	}
}

func newClient() *prices.OKTEClient {
	return prices.NewOKTEClient(cfg.API.BaseURL, cfg.API.Timeout, cfg.Location(), nil)
}

// parseDay resolves "today", "tomorrow" or YYYY-MM-DD to local midnight
func parseDay(s string, loc *time.Location) (time.Time, error) {
	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	switch s {
	case "", engine.DayToday:
		return today, nil
	case engine.DayTomorrow:
		return today.AddDate(0, 0, 1), nil
	}
	day, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format (use YYYY-MM-DD, today or tomorrow): %w", err)
	}
	return day, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fetchCmd() *cobra.Command {
	var date string
	var days int

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch day-ahead prices from OKTE",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			loc := cfg.Location()

			day, err := parseDay(date, loc)
			if err != nil {
				return err
			}
			if days < 1 || days > config.MaxFetchDays {
				return fmt.Errorf("days must be between 1 and %d", config.MaxFetchDays)
			}

			periods, err := newClient().Fetch(ctx, day, days)
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "Fetched %d periods\n", len(periods))

			records := make([]report.Record, 0, len(periods))
			for _, p := range periods {
				records = append(records, report.NewRecord(p, loc))
			}
			return printJSON(records)
		},
	}

	cmd.Flags().StringVarP(&date, "date", "d", "today", "First day to fetch (YYYY-MM-DD, today or tomorrow)")
	cmd.Flags().IntVar(&days, "days", 1, "Number of days to fetch")

	return cmd
}

func statsCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show min, max and average price of a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			loc := cfg.Location()
			day, err := parseDay(date, loc)
			if err != nil {
				return err
			}

			periods, err := newClient().Fetch(context.Background(), day, 1)
			if err != nil {
				return err
			}
			periods = engine.FilterByDate(periods, day)
			fmt.Fprintf(os.Stderr, "Fetched %d periods\n", len(periods))

			key := day.Format("2006-01-02")
			return printJSON(report.NewDayStats(key, engine.Statistics(periods), loc))
		},
	}

	cmd.Flags().StringVarP(&date, "date", "d", "today", "Day (YYYY-MM-DD, today or tomorrow)")

	return cmd
}

func windowCmd() *cobra.Command {
	var size int
	var from, to, date string
	var highest bool

	cmd := &cobra.Command{
		Use:   "window",
		Short: "Find the lowest (or highest) priced contiguous window of a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			loc := cfg.Location()
			day, err := parseDay(date, loc)
			if err != nil {
				return err
			}

			periods, err := newClient().Fetch(context.Background(), day, 1)
			if err != nil {
				return err
			}
			periods = engine.FilterByDate(periods, day)
			fmt.Fprintf(os.Stderr, "Fetched %d periods\n", len(periods))

			query := engine.WindowQuery{
				PeriodCount: size,
				TimeFrom:    from,
				TimeTo:      to,
				Optimize:    engine.OptimizeMin,
			}
			if highest {
				query.Optimize = engine.OptimizeMax
			}

			result := engine.FindWindow(periods, query)
			if !result.Found {
				fmt.Fprintf(os.Stderr, "Warning: %s\n", result.Message)
			}
			return printJSON(report.NewWindow(result, loc))
		},
	}

	cmd.Flags().IntVarP(&size, "size", "s", engine.DefaultWindowSize, "Window size in 15-minute periods")
	cmd.Flags().StringVar(&from, "from", engine.DefaultTimeFrom, "Earliest period start (HH:MM)")
	cmd.Flags().StringVar(&to, "to", engine.DefaultTimeTo, "Latest period start (HH:MM)")
	cmd.Flags().BoolVar(&highest, "highest", false, "Find the most expensive window instead")
	cmd.Flags().StringVarP(&date, "day", "d", "today", "Day (YYYY-MM-DD, today or tomorrow)")

	return cmd
}

func calculatorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calculators",
		Short: "List configured calculators and their ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			type entry struct {
				ID     string `json:"id"`
				Name   string `json:"name"`
				Master string `json:"master"`
			}
			list := make([]entry, 0, len(cfg.Calculators))
			for _, c := range cfg.Calculators {
				list = append(list, entry{ID: c.ID, Name: c.Name, Master: c.Master})
			}
			return printJSON(list)
		},
	}
}

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change stored calculator settings",
	}

	cmd.AddCommand(settingsGetCmd())
	cmd.AddCommand(settingsSetCmd())
	cmd.AddCommand(settingsResetCmd())

	return cmd
}

func openStore() (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}
	return store.NewStore(dbPath)
}

func settingsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <calculator-id>",
		Short: "Show the settings of a calculator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer st.Close()

			settings, err := st.GetSettings(args[0])
			if errors.Is(err, store.ErrNotFound) {
				fmt.Fprintln(os.Stderr, "No stored settings, showing defaults")
				settings = engine.DefaultCalculatorSettings()
			} else if err != nil {
				return err
			}
			return printJSON(settings)
		},
	}
}

func settingsResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <calculator-id>",
		Short: "Drop the stored settings of a calculator so it starts from defaults",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer st.Close()

			if err := st.DeleteSettings(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "✓ Reset settings of %s\n", args[0])
			return printJSON(engine.DefaultCalculatorSettings())
		},
	}
}

func settingsSetCmd() *cobra.Command {
	var kind string
	var size int
	var from, to string
	var autoFrom, autoTo bool

	cmd := &cobra.Command{
		Use:   "set <calculator-id>",
		Short: "Change the settings of a calculator",
		Long: `Change the lowest or highest window settings of a calculator. Only the
flags given are changed. A running okted picks the change up on its next
restart; use the API to change settings of a running daemon.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer st.Close()

			id := args[0]
			settings, err := st.GetSettings(id)
			if errors.Is(err, store.ErrNotFound) {
				settings = engine.DefaultCalculatorSettings()
			} else if err != nil {
				return err
			}

			var w *engine.WindowSettings
			switch kind {
			case "lowest":
				w = &settings.Lowest
			case "highest":
				w = &settings.Highest
			default:
				return fmt.Errorf("kind must be lowest or highest, got %q", kind)
			}

			flags := cmd.Flags()
			if flags.Changed("size") {
				w.Size = size
			}
			if flags.Changed("from") {
				w.TimeFrom = from
			}
			if flags.Changed("to") {
				w.TimeTo = to
			}
			if flags.Changed("auto-from") {
				w.AutoFrom = autoFrom
			}
			if flags.Changed("auto-to") {
				w.AutoTo = autoTo
			}

			if err := settings.Validate(); err != nil {
				return err
			}
			if err := st.SaveSettings(id, settings); err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "✓ Updated %s window of %s\n", kind, id)
			return printJSON(settings)
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "lowest", "Window kind (lowest or highest)")
	cmd.Flags().IntVarP(&size, "size", "s", engine.DefaultWindowSize, "Window size in 15-minute periods (1-96)")
	cmd.Flags().StringVar(&from, "from", engine.DefaultTimeFrom, "Earliest period start (HH:MM)")
	cmd.Flags().StringVar(&to, "to", engine.DefaultTimeTo, "Latest period start (HH:MM)")
	cmd.Flags().BoolVar(&autoFrom, "auto-from", false, "Start the search range at sunrise")
	cmd.Flags().BoolVar(&autoTo, "auto-to", false, "End the search range at sunset")

	return cmd
}
