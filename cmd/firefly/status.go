package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/fireflyviz/internal/firefly"
	"github.com/cwbudde/fireflyviz/internal/server"
)

var (
	serverURL string
)

var statusCmd = &cobra.Command{
	Use:   "status [session-id]",
	Short: "Query server sessions",
	Long: `Queries the server for session information.
If no session-id is provided, lists all sessions.
If session-id is provided, shows detailed status for that session.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		var sessions []server.SessionStatus
		if err := getJSON(fmt.Sprintf("%s/api/v1/sessions", serverURL), &sessions); err != nil {
			return err
		}
		printSessionList(cmd.OutOrStdout(), sessions)
		return nil
	}

	var status server.SessionStatus
	if err := getJSON(fmt.Sprintf("%s/api/v1/sessions/%s", serverURL, args[0]), &status); err != nil {
		return err
	}
	printSessionStatus(cmd.OutOrStdout(), status)
	return nil
}

func getJSON(url string, v any) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("not found: %s", url)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func printSessionList(w io.Writer, sessions []server.SessionStatus) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions found")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION ID\tOBJECTIVE\tSTATE\tITERATION\tBEST FITNESS")
	for _, s := range sessions {
		p := sessionParams(s)
		fmt.Fprintf(tw, "%s\t%s (%dD)\t%s\t%d/%d\t%.6g\n",
			s.ID,
			s.Config.Objective,
			s.Config.Dimension,
			s.State,
			s.Iteration,
			p.MaxIterations,
			s.BestFitness,
		)
	}
	tw.Flush()
}

func printSessionStatus(w io.Writer, s server.SessionStatus) {
	fmt.Fprintf(w, "Session: %s\n", s.ID)
	fmt.Fprintf(w, "State: %s (%s)\n", s.State, s.Phase)
	fmt.Fprintln(w)

	p := sessionParams(s)
	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintf(w, "  Objective: %s (%dD)\n", s.Config.Objective, s.Config.Dimension)
	fmt.Fprintf(w, "  Seed: %d\n", s.Config.Seed)
	fmt.Fprintf(w, "  Population: %d\n", p.PopulationSize)
	fmt.Fprintf(w, "  Bounds: %v .. %v\n", p.Lower, p.Upper)
	fmt.Fprintf(w, "  beta0=%g alpha=%g gamma=%g delta=%g\n", p.BaseAttractiveness, p.RandomizationScale, p.AbsorptionCoefficient, p.AlphaDecayRate)
	fmt.Fprintf(w, "  Interval: %dms\n", s.Config.IntervalMs)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Progress:")
	fmt.Fprintf(w, "  Iteration: %d/%d\n", s.Iteration, p.MaxIterations)
	fmt.Fprintf(w, "  Best fitness: %.8g\n", s.BestFitness)
	fmt.Fprintf(w, "  Best position: %s\n", formatPosition(s.BestPosition))
	if s.Snapshot != nil {
		fmt.Fprintf(w, "  Alpha: %.6g\n", s.Snapshot.RandomizationScale)
	}
	if s.RunID != "" {
		fmt.Fprintf(w, "  Saved as run: %s\n", s.RunID)
	}
	if s.Error != "" {
		fmt.Fprintf(w, "\nError: %s\n", s.Error)
	}
}

func sessionParams(s server.SessionStatus) firefly.Parameters {
	if s.Config.Params == nil {
		return firefly.Parameters{}
	}
	return *s.Config.Params
}
