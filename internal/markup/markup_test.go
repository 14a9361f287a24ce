package markup

import (
	"reflect"
	"testing"
)

func TestStripTags(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"empty", "", ""},
		{"plain text", "삼성전자", "삼성전자"},
		{"simple tag", "<span>삼성전자</span>", "삼성전자"},
		{"br becomes space", "상승<br>하락", "상승 하락"},
		{"self closing br", "a<br />b", "a b"},
		{"nbsp entity", "a&nbsp;b", "a b"},
		{"amp entity", "S&amp;P", "S&P"},
		{"apos entity", "it&#039;s", "it's"},
		{"quot entity", "&quot;quoted&quot;", `"quoted"`},
		{"whitespace collapsed", "  a \n\t b  ", "a b"},
		{"nested tags", `<td><a href="/item">NAVER</a> <em>+1.2%</em></td>`, "NAVER +1.2%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripTags(tt.html); got != tt.want {
				t.Errorf("StripTags(%q) = %q, want %q", tt.html, got, tt.want)
			}
		})
	}
}

func TestStripTags_Idempotent(t *testing.T) {
	input := `<td><a href="/item/main.naver?code=005930">삼성&nbsp;전자</a><br></td>`
	once := StripTags(input)
	twice := StripTags(once)
	if once != twice {
		t.Errorf("StripTags is not idempotent: first %q, second %q", once, twice)
	}
}

func TestExtractAttribute(t *testing.T) {
	tests := []struct {
		name string
		html string
		attr string
		want string
	}{
		{"present", `<img src="up.gif" alt="상승">`, "alt", "상승"},
		{"absent", `<img src="up.gif">`, "alt", ""},
		{"case insensitive", `<img ALT="하락">`, "alt", "하락"},
		{"empty value", `<img alt="">`, "alt", ""},
		{"empty html", "", "alt", ""},
		{"empty name", `<img alt="x">`, "", ""},
		{"first match wins", `<img alt="a"><img alt="b">`, "alt", "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractAttribute(tt.html, tt.attr); got != tt.want {
				t.Errorf("ExtractAttribute(%q, %q) = %q, want %q", tt.html, tt.attr, got, tt.want)
			}
		})
	}
}

func TestExtractAnchorInfo(t *testing.T) {
	tests := []struct {
		name string
		html string
		want AnchorInfo
	}{
		{
			name: "anchor with title",
			html: `<td><a href="/sise/theme.naver?no=183" title="2차전지">2차전지 <em>테마</em></a></td>`,
			want: AnchorInfo{Href: "/sise/theme.naver?no=183", Text: "2차전지 테마", Title: "2차전지"},
		},
		{
			name: "anchor without title",
			html: `<a href="/item/main.naver?code=005930">삼성전자</a>`,
			want: AnchorInfo{Href: "/item/main.naver?code=005930", Text: "삼성전자"},
		},
		{
			name: "no anchor falls back to stripped text",
			html: `<td>맨몸 텍스트</td>`,
			want: AnchorInfo{Text: "맨몸 텍스트"},
		},
		{
			name: "multiline anchor body",
			html: "<a href=\"/x\">첫째\n둘째</a>",
			want: AnchorInfo{Href: "/x", Text: "첫째 둘째"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractAnchorInfo(tt.html); got != tt.want {
				t.Errorf("ExtractAnchorInfo(%q) = %+v, want %+v", tt.html, got, tt.want)
			}
		})
	}
}

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"numeric code", `<a href="/item/main.naver?code=005930">삼성전자</a>`, "005930"},
		{"code with letters", `<a href="?code=0053K0">우선주</a>`, "0053K0"},
		{"no code", `<a href="/item/main.naver">link</a>`, ""},
		{"empty", "", ""},
		{"first match wins", `code=005930 code=000660`, "005930"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractCode(tt.html); got != tt.want {
				t.Errorf("ExtractCode(%q) = %q, want %q", tt.html, got, tt.want)
			}
		})
	}
}

func TestRowsAndCells(t *testing.T) {
	table := `<table>
<tr class="type1"><td>a</td><td>b</td></tr>
<tr><td colspan="2">c</td></tr>
</table>`

	rows := Rows(table)
	if len(rows) != 2 {
		t.Fatalf("Rows() returned %d rows, want 2", len(rows))
	}

	cells := Cells(rows[0])
	want := []string{"a", "b"}
	if !reflect.DeepEqual(cells, want) {
		t.Errorf("Cells(row 0) = %v, want %v", cells, want)
	}

	cells = Cells(rows[1])
	if len(cells) != 1 || cells[0] != "c" {
		t.Errorf("Cells(row 1) = %v, want [c]", cells)
	}
}

func TestRows_Multiline(t *testing.T) {
	table := "<tr>\n<td>\nfirst\n</td>\n</tr>"
	rows := Rows(table)
	if len(rows) != 1 {
		t.Fatalf("Rows() returned %d rows, want 1", len(rows))
	}
	if got := StripTags(rows[0]); got != "first" {
		t.Errorf("stripped row = %q, want %q", got, "first")
	}
}
