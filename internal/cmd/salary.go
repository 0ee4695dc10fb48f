package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/jimezsa/jobparser/internal/export"
	"github.com/jimezsa/jobparser/internal/salary"
)

type SalaryCmd struct {
	Fragments []string `arg:"" optional:"" help:"Salary text fragments; read one salary per line from stdin when omitted."`
}

type salaryResult struct {
	Input  string       `json:"input"`
	Kind   string       `json:"kind"`
	Salary salary.Value `json:"salary"`
	Error  string       `json:"error,omitempty"`
}

func (s *SalaryCmd) Run(ctx *Context) error {
	var results []salaryResult
	if len(s.Fragments) > 0 {
		results = append(results, parseSalary(s.Fragments))
	} else {
		if ctx.In == nil {
			return fmt.Errorf("no salary text given")
		}
		lines, err := readLines(ctx.In)
		if err != nil {
			return err
		}
		for _, line := range lines {
			results = append(results, parseSalary([]string{line}))
		}
	}

	if err := writeSalaryResults(ctx, results); err != nil {
		return err
	}
	for _, res := range results {
		if res.Error != "" {
			return fmt.Errorf("some salaries could not be parsed")
		}
	}
	return nil
}

func parseSalary(fragments []string) salaryResult {
	result := salaryResult{Input: salary.Normalize(fragments)}
	value, err := salary.Parse(fragments)
	if err != nil {
		result.Kind = salary.KindAbsent.String()
		result.Error = err.Error()
		return result
	}
	result.Kind = value.Kind().String()
	result.Salary = value
	return result
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return lines, nil
}

func writeSalaryResults(ctx *Context, results []salaryResult) error {
	if ctx.JSONOutput {
		enc := json.NewEncoder(ctx.Out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if len(results) == 1 {
			return enc.Encode(results[0])
		}
		if results == nil {
			results = []salaryResult{}
		}
		return enc.Encode(results)
	}

	if ctx.PlainText {
		for _, res := range results {
			low, high := "", ""
			if lo, hi, ok := res.Salary.Bounds(); ok {
				low = fmt.Sprint(lo)
				if res.Salary.Kind() == salary.KindRange {
					high = fmt.Sprint(hi)
				}
			}
			fmt.Fprintln(ctx.Out, strings.Join([]string{res.Kind, low, high, res.Input}, "\t"))
		}
		return nil
	}

	tw := tabwriter.NewWriter(ctx.Out, 0, 4, 2, ' ', 0)
	for _, res := range results {
		display := export.DisplaySalary(res.Salary)
		switch {
		case res.Error != "":
			display = "error: " + res.Error
		case display == "":
			display = "absent"
		}
		fmt.Fprintf(tw, "%s\t%s\n", res.Input, display)
	}
	return tw.Flush()
}
