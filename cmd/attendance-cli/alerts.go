package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-attendance-api/internal/models"
)

func alertsCmd(verbose *bool) *cobra.Command {
	var (
		studentID string
		classID   string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Evaluate attendance thresholds for a student or a class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (studentID == "") == (classID == "") {
				return fmt.Errorf("exactly one of --student or --class is required")
			}
			a, err := openApp(cmd.Context(), *verbose)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if studentID != "" {
				result, err := a.alerts.StudentAlerts(cmd.Context(), studentID)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(out, result)
				}
				printAlertResult(out, result)
				return nil
			}

			summary, err := a.alerts.ClassAlerts(cmd.Context(), classID)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(out, summary)
			}
			fmt.Fprintf(out, "Class %s (%s): %d students, %d flagged\n\n",
				summary.ClassName, summary.ClassID, summary.StudentCount, summary.FlaggedStudents)
			for i := range summary.Students {
				printAlertResult(out, &summary.Students[i])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&studentID, "student", "", "Student id")
	cmd.Flags().StringVar(&classID, "class", "", "Class id")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")
	return cmd
}

func printAlertResult(w io.Writer, r *models.AlertResult) {
	c := r.Counts
	fmt.Fprintf(w, "%s (%s): absences %d/30d %d total, lateness %d/30d %d total\n",
		r.StudentName, r.StudentID, c.Absences30Day, c.AbsencesCumulative, c.Lateness30Day, c.LatenessCumulative)
	for _, alert := range r.Alerts {
		fmt.Fprintf(w, "  ALERT %s %s: %d >= %d\n", alert.Type, alert.Period, alert.CurrentCount, alert.ThresholdCount)
	}
	near := r.Approaching
	for _, flag := range []struct {
		name string
		on   bool
	}{
		{"absences30Day", near.Absences30Day},
		{"absencesCumulative", near.AbsencesCumulative},
		{"lateness30Day", near.Lateness30Day},
		{"latenessCumulative", near.LatenessCumulative},
	} {
		if flag.on {
			fmt.Fprintf(w, "  near  %s\n", flag.name)
		}
	}
}
