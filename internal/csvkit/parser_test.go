package csvkit

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

// ============================================================================
// Parse Tests
// ============================================================================

func TestParse_Basic(t *testing.T) {
	parsed, err := Parse("Email,Name\nfoo@bar.com,CPR\n")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	wantHeaders := []string{"Email", "Name"}
	if !reflect.DeepEqual(parsed.Headers, wantHeaders) {
		t.Errorf("Headers = %v, want %v", parsed.Headers, wantHeaders)
	}

	if len(parsed.Rows) != 1 {
		t.Fatalf("len(Rows) = %d, want 1", len(parsed.Rows))
	}
	if got := parsed.Rows[0].Get("Email"); got != "foo@bar.com" {
		t.Errorf("Get(Email) = %q, want %q", got, "foo@bar.com")
	}
	if parsed.Rows[0].Line != 2 {
		t.Errorf("Line = %d, want 2", parsed.Rows[0].Line)
	}
}

func TestParse_QuotedCells(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{
			name: "comma inside quotes",
			line: `"Smith, John",CPR`,
			want: []string{"Smith, John", "CPR"},
		},
		{
			name: "escaped quotes",
			line: `"She said ""hi""",x`,
			want: []string{`She said "hi"`, "x"},
		},
		{
			name: "both",
			line: `"Doe, Jane","Says ""hi"""`,
			want: []string{"Doe, Jane", `Says "hi"`},
		},
		{
			name: "empty cells",
			line: `a,,c`,
			want: []string{"a", "", "c"},
		},
		{
			name: "whitespace trimmed",
			line: `  a  ,  b  `,
			want: []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := Parse("h1,h2,h3\n" + tt.line + "\n")
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			got := parsed.Rows[0].Cells
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Cells = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParse_LineEndings(t *testing.T) {
	for _, sep := range []string{"\n", "\r\n", "\r"} {
		t.Run(strings.ReplaceAll(sep, "\r", "CR"), func(t *testing.T) {
			input := strings.Join([]string{"a,b", "1,2", "3,4"}, sep)
			parsed, err := Parse(input)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if len(parsed.Rows) != 2 {
				t.Errorf("len(Rows) = %d, want 2", len(parsed.Rows))
			}
		})
	}
}

func TestParse_BOMStripped(t *testing.T) {
	parsed, err := Parse("\uFEFF" + "Email,Name\nfoo@bar.com,CPR\n")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed.Headers[0] != "Email" {
		t.Errorf("Headers[0] = %q, want %q", parsed.Headers[0], "Email")
	}
}

func TestParse_BlankLinesSkipped(t *testing.T) {
	parsed, err := Parse("a,b\n1,2\n\n   \n3,4\n")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(parsed.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(parsed.Rows))
	}
	// Blank lines still consume line numbers
	if parsed.Rows[0].Line != 2 {
		t.Errorf("Rows[0].Line = %d, want 2", parsed.Rows[0].Line)
	}
	if parsed.Rows[1].Line != 5 {
		t.Errorf("Rows[1].Line = %d, want 5", parsed.Rows[1].Line)
	}
}

func TestParse_HeaderRowCountInvariant(t *testing.T) {
	input := "h1,h2,h3\n1,2,3\n4,5,6\n7,8,9\n"
	parsed, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(parsed.Headers) != 3 {
		t.Errorf("len(Headers) = %d, want 3", len(parsed.Headers))
	}
	if len(parsed.Rows) != 3 {
		t.Errorf("len(Rows) = %d, want 3", len(parsed.Rows))
	}
	for i, row := range parsed.Rows {
		for _, h := range parsed.Headers {
			if row.Get(h) == "" {
				t.Errorf("Rows[%d].Get(%q) is empty, want value", i, h)
			}
		}
	}
}

func TestParse_RaggedRow(t *testing.T) {
	parsed, err := Parse("a,b,c\n1,2\n")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := parsed.Rows[0].Get("c"); got != "" {
		t.Errorf("Get(c) = %q, want empty for missing cell", got)
	}
}

func TestParse_DuplicateHeaderLastWins(t *testing.T) {
	parsed, err := Parse("a,a\n1,2\n")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := parsed.Rows[0].Get("a"); got != "2" {
		t.Errorf("Get(a) = %q, want %q (last column wins)", got, "2")
	}
}

func TestParse_StructuralErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty input", "", ErrEmptyHeaders},
		{"whitespace only", "   \n\n  ", ErrEmptyHeaders},
		{"header only", "a,b,c\n", ErrNoDataRows},
		{"header and blank lines", "a,b\n\n\n", ErrNoDataRows},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

// ============================================================================
// WriteString Tests
// ============================================================================

func TestWriteString_Quoting(t *testing.T) {
	got := WriteString([]string{"a", "b"}, [][]string{{"Doe, Jane", `Says "hi"`}})
	want := "a,b\n\"Doe, Jane\",\"Says \"\"hi\"\"\"\n"
	if got != want {
		t.Errorf("WriteString() = %q, want %q", got, want)
	}
}

// TestRoundTrip verifies that parsing serialized output reproduces the
// original cell values exactly.
func TestRoundTrip(t *testing.T) {
	headers := []string{"Name", "Quote", "Plain"}
	rows := [][]string{
		{"Doe, Jane", `Says "hi"`, "x"},
		{`"quoted"`, "a,b,c", "y"},
		{"plain", "", "z"},
	}

	parsed, err := Parse(WriteString(headers, rows))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !reflect.DeepEqual(parsed.Headers, headers) {
		t.Errorf("Headers = %v, want %v", parsed.Headers, headers)
	}
	for i, row := range parsed.Rows {
		if !reflect.DeepEqual(row.Cells, rows[i]) {
			t.Errorf("Rows[%d].Cells = %v, want %v", i, row.Cells, rows[i])
		}
	}
}
