package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rgehrsitz/benadmin/internal/domain"
	"github.com/rgehrsitz/benadmin/internal/enrollment"
	"github.com/spf13/cobra"
)

func enrollCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Add one plan to a participant",
		Long:  "Find or create the participant by name and date of birth, then enroll them (and covered dependents) in a plan.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			var req enrollment.Request
			kind, _ := f.GetString("kind")
			mode, _ := f.GetString("mode")
			req.Kind = domain.PlanKind(kind)
			req.Mode = enrollment.Mode(mode)
			req.GroupName, _ = f.GetString("group")
			req.ProviderName, _ = f.GetString("provider")
			req.Name, _ = f.GetString("name")
			req.DateOfBirth, _ = f.GetString("dob")
			req.Phone, _ = f.GetString("phone")
			req.Email, _ = f.GetString("email")
			req.Address, _ = f.GetString("address")
			req.HireDate, _ = f.GetString("hire-date")
			req.ClassNumber, _ = f.GetString("class")
			req.PlanName, _ = f.GetString("plan")
			req.OptionLabel, _ = f.GetString("option")
			req.Rate, _ = f.GetString("rate")
			req.EffectiveDate, _ = f.GetString("effective-date")
			req.EndDate, _ = f.GetString("end-date")

			coverage, _ := f.GetString("coverage")
			cov, err := enrollment.ParseCoverage(coverage)
			if err != nil {
				return err
			}
			cov.DependentIDs, _ = f.GetStringSlice("dependent")
			req.Coverage = cov

			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			u := enrollment.NewUpserter(s)
			u.SetLogger(engineLogger())
			res, err := u.Enroll(cmd.Context(), req)
			if res != nil {
				if werr := writeResult(cmd.OutOrStdout(), outputFormat(cmd), res); werr != nil {
					return werr
				}
			}
			return err
		},
	}
	f := cmd.Flags()
	f.String("kind", string(domain.PlanKindGroup), "plan kind: group or medicare")
	f.String("mode", string(enrollment.ModeInteractive), "rate as-of mode: interactive or bulk")
	f.String("group", "", "group name")
	f.String("provider", "", "provider name (medicare plans)")
	f.String("name", "", "participant name")
	f.String("dob", "", "participant date of birth")
	f.String("phone", "", "phone number")
	f.String("email", "", "email address")
	f.String("address", "", "mailing address")
	f.String("hire-date", "", "hire date")
	f.String("class", "", "contribution class (composite plans)")
	f.String("plan", "", "plan name")
	f.String("option", "", "option label")
	f.String("rate", "", "rate value")
	f.String("effective-date", "", "enrollment effective date")
	f.String("end-date", "", "enrollment end date")
	f.String("coverage", "", "coverage tier: employee, employee+spouse, employee+children or family")
	f.StringSlice("dependent", nil, "dependent ID to cover (repeatable; overrides the coverage tier)")
	return cmd
}

func addDependentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-dependent",
		Short: "Add a spouse or child to a participant",
		Long:  "Create the dependent and link them to the participant's age banded and composite plans.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			var req enrollment.DependentRequest
			req.ParticipantID, _ = f.GetString("participant-id")
			req.ParticipantName, _ = f.GetString("participant")
			req.ParticipantDateOfBirth, _ = f.GetString("participant-dob")
			req.Name, _ = f.GetString("name")
			req.Relationship, _ = f.GetString("relationship")
			req.DateOfBirth, _ = f.GetString("dob")

			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			u := enrollment.NewUpserter(s)
			u.SetLogger(engineLogger())
			res, err := u.AddDependent(cmd.Context(), req)
			if res != nil {
				if werr := writeResult(cmd.OutOrStdout(), outputFormat(cmd), res); werr != nil {
					return werr
				}
			}
			return err
		},
	}
	f := cmd.Flags()
	f.String("participant-id", "", "participant ID")
	f.String("participant", "", "participant name (with --participant-dob)")
	f.String("participant-dob", "", "participant date of birth")
	f.String("name", "", "dependent name")
	f.String("relationship", "", "Spouse or Child")
	f.String("dob", "", "dependent date of birth")
	return cmd
}

func terminateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "terminate [group|medicare] [enrollment-id] [date]",
		Short: "Set or clear an enrollment's termination date",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := ""
			if len(args) == 3 {
				date = args[2]
			}
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			u := enrollment.NewUpserter(s)
			u.SetLogger(engineLogger())
			if err := u.Terminate(cmd.Context(), domain.PlanKind(args[0]), args[1], date); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enrollment %s updated\n", args[1])
			return nil
		},
	}
}

func writeResult(w io.Writer, format string, res *enrollment.Result) error {
	if format == "json" {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	if res.Message != "" {
		fmt.Fprintln(w, res.Message)
	}
	for _, n := range res.Notes {
		fmt.Fprintf(w, "%s: %s\n", n.Kind, n.Message)
	}
	return nil
}
