package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/studentkit/internal/calculator"
	"github.com/example/studentkit/internal/models"
)

func newGPACmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "gpa",
		Short: "Compute semester GPAs and the CGPA from a JSON list of semesters",
		Long: `Reads a JSON array of semesters, each with subjects carrying a grade (0-10)
and a credit, from --file or standard input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			var semesters []models.Semester
			if err := json.NewDecoder(in).Decode(&semesters); err != nil {
				return fmt.Errorf("failed to decode semesters: %w", err)
			}

			type semesterGPA struct {
				Name    string  `json:"name"`
				GPA     string  `json:"gpa"`
				Credits float64 `json:"credits"`
			}
			var out struct {
				Semesters []semesterGPA `json:"semesters"`
				CGPA      string        `json:"cgpa"`
			}
			for i, sem := range semesters {
				for _, s := range sem.Subjects {
					if err := calculator.ValidateSubject(s); err != nil {
						return fmt.Errorf("semester %d, %q: %w", i+1, s.SubjectName, err)
					}
				}
				name := sem.Name
				if name == "" {
					name = fmt.Sprintf("Semester %d", i+1)
				}
				out.Semesters = append(out.Semesters, semesterGPA{
					Name:    name,
					GPA:     calculator.FormatGPA(calculator.SemesterGPA(sem.Subjects)),
					Credits: calculator.TotalCredits(sem.Subjects),
				})
			}
			out.CGPA = calculator.FormatGPA(calculator.CGPA(semesters))

			return printResult(cmd, out, func(w io.Writer) {
				for _, s := range out.Semesters {
					fmt.Fprintf(w, "%s: %s (%g credits)\n", s.Name, s.GPA, s.Credits)
				}
				fmt.Fprintf(w, "CGPA: %s\n", out.CGPA)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with semesters (default stdin)")
	return cmd
}

// parseMatrix reads rows separated by ';' with values separated by ',' or spaces.
func parseMatrix(s string) ([][]float64, error) {
	var m [][]float64
	for _, row := range strings.Split(s, ";") {
		fields := strings.FieldsFunc(row, func(r rune) bool { return r == ',' || r == ' ' })
		if len(fields) == 0 {
			continue
		}
		values := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", calculator.ErrInvalidMatrix, f)
			}
			values[i] = v
		}
		m = append(m, values)
	}
	return m, nil
}

func newDeterminantCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "det MATRIX",
		Short:   "Compute the determinant of a square matrix, e.g. \"1,2;3,4\"",
		Args:    cobra.ExactArgs(1),
		Example: `  studentctl det "2,0,1;1,3,2;1,1,1"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := parseMatrix(args[0])
			if err != nil {
				return err
			}
			det, err := calculator.Determinant(m)
			if err != nil {
				return err
			}
			return printResult(cmd, map[string]float64{"determinant": det}, func(w io.Writer) {
				fmt.Fprintln(w, strconv.FormatFloat(det, 'g', -1, 64))
			})
		},
	}
}

func newBaseCmd() *cobra.Command {
	var from, to int
	cmd := &cobra.Command{
		Use:   "base VALUE",
		Short: "Convert an integer between bases 2, 8, 10 and 16",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if to != 0 {
				out, err := calculator.ConvertBase(args[0], from, to)
				if err != nil {
					return err
				}
				return printResult(cmd, map[int]string{to: out}, func(w io.Writer) {
					fmt.Fprintln(w, out)
				})
			}
			all, err := calculator.ConvertAll(args[0], from)
			if err != nil {
				return err
			}
			return printResult(cmd, all, func(w io.Writer) {
				for _, b := range calculator.SupportedBases {
					fmt.Fprintf(w, "base %-2d %s\n", b, all[b])
				}
			})
		},
	}
	cmd.Flags().IntVar(&from, "from", 10, "base of VALUE")
	cmd.Flags().IntVar(&to, "to", 0, "target base (default: every supported base)")
	return cmd
}

func newMotionCmd() *cobra.Command {
	var in calculator.MotionInput
	var speed, distance, duration float64
	cmd := &cobra.Command{
		Use:   "motion",
		Short: "Solve speed = distance / time from two of the three values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("speed") {
				in.Speed = &speed
			}
			if cmd.Flags().Changed("distance") {
				in.Distance = &distance
			}
			if cmd.Flags().Changed("time") {
				in.Time = &duration
			}
			res, err := calculator.SolveMotion(in)
			if err != nil {
				return err
			}
			return printResult(cmd, res, func(w io.Writer) {
				fmt.Fprintf(w, "speed:    %g %s\n", res.Speed, res.SpeedUnit)
				fmt.Fprintf(w, "distance: %g %s\n", res.Distance, in.DistanceUnit)
				fmt.Fprintf(w, "time:     %g %s\n", res.Time, in.TimeUnit)
			})
		},
	}
	cmd.Flags().Float64Var(&speed, "speed", 0, "speed in distance-unit per time-unit")
	cmd.Flags().Float64Var(&distance, "distance", 0, "distance")
	cmd.Flags().Float64Var(&duration, "time", 0, "time")
	cmd.Flags().StringVar(&in.DistanceUnit, "distance-unit", "km", "m, km or mi")
	cmd.Flags().StringVar(&in.TimeUnit, "time-unit", "h", "s, min or h")
	return cmd
}

func newPrimeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prime N",
		Short: "Check whether N is prime and print its prime factors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("N must be an integer: %w", err)
			}
			factors := calculator.PrimeFactors(n)
			out := struct {
				N       int64   `json:"n"`
				IsPrime bool    `json:"isPrime"`
				Factors []int64 `json:"factors"`
			}{n, calculator.IsPrime(n), factors}
			return printResult(cmd, out, func(w io.Writer) {
				if out.IsPrime {
					fmt.Fprintf(w, "%d is prime\n", n)
					return
				}
				parts := make([]string, len(factors))
				for i, f := range factors {
					parts[i] = strconv.FormatInt(f, 10)
				}
				fmt.Fprintf(w, "%d is not prime: %s\n", n, strings.Join(parts, " x "))
			})
		},
	}
}
