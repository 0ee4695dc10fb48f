package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestSalaryArgsJSON(t *testing.T) {
	var out, errOut bytes.Buffer
	ctx := newTestContext(&out, &errOut)
	ctx.JSONOutput = true

	cmd := &SalaryCmd{Fragments: []string{"от 100 000", "до 150 000 ₽", "на руки"}}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var got struct {
		Kind   string    `json:"kind"`
		Salary []float64 `json:"salary"`
	}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	if got.Kind != "range" || len(got.Salary) != 2 || got.Salary[0] != 100000 || got.Salary[1] != 150000 {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestSalaryStdinPlain(t *testing.T) {
	var out, errOut bytes.Buffer
	ctx := newTestContext(&out, &errOut)
	ctx.PlainText = true
	ctx.In = strings.NewReader("от 80 000 ₽\n\nПо договорённости\n50 000,50 ₽\n")

	if err := (&SalaryCmd{}).Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := "single\t80000\t\tот 80 000 ₽\n" +
		"absent\t\t\tПо договорённости\n" +
		"single\t50000.5\t\t50 000,50 ₽\n"
	if out.String() != want {
		t.Fatalf("unexpected output:\n%q\nwant:\n%q", out.String(), want)
	}
}

func TestSalaryHumanOutput(t *testing.T) {
	var out, errOut bytes.Buffer
	ctx := newTestContext(&out, &errOut)

	if err := (&SalaryCmd{Fragments: []string{"По договорённости"}}).Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "absent") {
		t.Fatalf("expected absent marker, got %q", out.String())
	}
}

func TestSalaryReportsMalformedNumbers(t *testing.T) {
	var out, errOut bytes.Buffer
	ctx := newTestContext(&out, &errOut)

	err := (&SalaryCmd{Fragments: []string{strings.Repeat("9", 400) + " ₽"}}).Run(ctx)
	if err == nil {
		t.Fatal("expected error for overflowing salary")
	}
	if !strings.Contains(out.String(), "error: malformed salary number") {
		t.Fatalf("expected error row, got %q", out.String())
	}
}
