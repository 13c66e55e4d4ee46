package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/microgrid-dispatch/core/model"
	"github.com/kilianp07/microgrid-dispatch/core/recurrence"
)

var (
	occFrom  string
	occLimit int
)

var occurrencesCmd = &cobra.Command{
	Use:   "occurrences <rule.yaml>",
	Short: "Preview the occurrences of a schedule without a running service",
	Long: `Reads a YAML document holding start_time and an optional recurrence
rule, validates the rule and prints the next occurrences in RFC 3339.`,
	Args: cobra.ExactArgs(1),
	RunE: runOccurrences,
}

func init() {
	occurrencesCmd.Flags().StringVar(&occFrom, "from", "", "first instant to consider (RFC 3339, defaults to start_time)")
	occurrencesCmd.Flags().IntVarP(&occLimit, "limit", "n", 10, "number of occurrences to print")
	rootCmd.AddCommand(occurrencesCmd)
}

// schedule is the subset of a dispatch the preview needs.
type schedule struct {
	StartTime  time.Time             `json:"start_time"`
	Recurrence *model.RecurrenceRule `json:"recurrence,omitempty"`
}

func runOccurrences(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	s, err := decodeSchedule(f)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	from := s.StartTime
	if occFrom != "" {
		if from, err = time.Parse(time.RFC3339, occFrom); err != nil {
			return fmt.Errorf("--from: %w", err)
		}
	}
	out := cmd.OutOrStdout()
	for _, t := range recurrence.TakeFrom(recurrence.Expand(s.StartTime, s.Recurrence), from.UTC(), occLimit) {
		if _, err := fmt.Fprintln(out, t.Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return nil
}

// decodeSchedule reads YAML and hands it to the JSON decoders of the model
// so both formats share one set of field names and enum spellings.
func decodeSchedule(r io.Reader) (schedule, error) {
	var raw map[string]any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return schedule{}, fmt.Errorf("decode yaml: %w", err)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return schedule{}, err
	}
	var s schedule
	if err := json.Unmarshal(b, &s); err != nil {
		return schedule{}, err
	}
	if s.StartTime.IsZero() {
		return schedule{}, fmt.Errorf("start_time is required")
	}
	s.StartTime = s.StartTime.UTC()
	if err := recurrence.Validate(s.Recurrence); err != nil {
		return schedule{}, err
	}
	return s, nil
}
