package naver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/text/encoding/korean"

	"marketfeed/internal/fetcher"
)

// encodeEUCKR converts a UTF-8 fixture to the EUC-KR bytes the upstream
// actually serves.
func encodeEUCKR(t *testing.T, s string) []byte {
	t.Helper()
	b, err := korean.EUCKR.NewEncoder().Bytes([]byte(s))
	if err != nil {
		t.Fatalf("failed to encode fixture to EUC-KR: %v", err)
	}
	return b
}

const netBuyFixture = `<html><body>
<div class="box_type_ms">
<div class="sise_guide_date">24.03.14</div>
<table summary="외국인 순매수 상위 종목">
<tr><td><a href="/item/main.naver?code=035420">NAVER</a></td><td>500</td><td>3,000</td><td>4,000</td></tr>
</table>
</div>
<div class="box_type_ms">
<div class="sise_guide_date">24.03.15</div>
<table summary="외국인 순매수 상위 종목">
<tr><th>종목명</th><th>수량</th><th>금액</th><th>거래량</th></tr>
<tr><td><a href="/item/main.naver?code=005930">삼성전자</a></td><td>1,000</td><td>7,450</td><td>12,345</td></tr>
<tr><td><a href="/item/main.naver?code=000660">SK하이닉스</a></td><td>800</td><td>6,000</td><td>9,876</td></tr>
<tr><td colspan="4">합계</td></tr>
</table>
</div>
<div class="c">footer</div>
</body></html>`

func TestParseNetBuy(t *testing.T) {
	snapshots := ParseNetBuy(netBuyFixture)
	if len(snapshots) != 2 {
		t.Fatalf("ParseNetBuy() returned %d snapshots, want 2", len(snapshots))
	}

	// Most recent session first regardless of document order.
	latest := snapshots[0]
	if latest.AsOf != "2024-03-15" {
		t.Errorf("latest AsOf = %q, want %q", latest.AsOf, "2024-03-15")
	}
	if latest.AsOfLabel != "2024년 03월 15일" {
		t.Errorf("latest AsOfLabel = %q, want %q", latest.AsOfLabel, "2024년 03월 15일")
	}
	if snapshots[1].AsOf != "2024-03-14" {
		t.Errorf("second AsOf = %q, want %q", snapshots[1].AsOf, "2024-03-14")
	}

	// Header and summary rows are skipped; ranks are assigned by position.
	if len(latest.Items) != 2 {
		t.Fatalf("latest snapshot has %d items, want 2", len(latest.Items))
	}

	first := latest.Items[0]
	if first.Rank != 1 {
		t.Errorf("Rank = %d, want 1", first.Rank)
	}
	if first.Name != "삼성전자" {
		t.Errorf("Name = %q, want %q", first.Name, "삼성전자")
	}
	if first.Code != "005930" {
		t.Errorf("Code = %q, want %q", first.Code, "005930")
	}
	if first.Quantity != "1,000" {
		t.Errorf("Quantity = %q, want %q", first.Quantity, "1,000")
	}
	if first.Amount != "7,450" {
		t.Errorf("Amount = %q, want %q", first.Amount, "7,450")
	}
	if first.TradingVolume != "12,345" {
		t.Errorf("TradingVolume = %q, want %q", first.TradingVolume, "12,345")
	}

	if second := latest.Items[1]; second.Rank != 2 || second.Code != "000660" {
		t.Errorf("second item = %+v, want rank 2 code 000660", second)
	}
}

func TestParseNetBuy_NoSections(t *testing.T) {
	if got := ParseNetBuy(`<html><body>nothing here</body></html>`); got != nil {
		t.Errorf("ParseNetBuy() = %v, want nil", got)
	}
}

func TestParseNetBuy_DuplicateDateLaterWins(t *testing.T) {
	html := `
<div class="box_type_ms">
<div class="sise_guide_date">24.03.15</div>
<table summary="순매수">
<tr><td><a href="?code=005930">삼성전자</a></td><td>1</td><td>2</td><td>3</td></tr>
</table>
</div>
<div class="box_type_ms">
<div class="sise_guide_date">24.03.15</div>
<table summary="순매수">
<tr><td><a href="?code=000660">SK하이닉스</a></td><td>4</td><td>5</td><td>6</td></tr>
</table>
</div>`

	snapshots := ParseNetBuy(html)
	if len(snapshots) != 1 {
		t.Fatalf("ParseNetBuy() returned %d snapshots, want 1", len(snapshots))
	}
	if got := snapshots[0].Items[0].Code; got != "000660" {
		t.Errorf("surviving section code = %q, want the later section's 000660", got)
	}
}

func TestParseNetBuy_UnparsableDateSortsLast(t *testing.T) {
	html := `
<div class="box_type_ms">
<div class="sise_guide_date">날짜 없음</div>
<table summary="순매수">
<tr><td><a href="?code=000001">이름없는날짜</a></td><td>1</td><td>2</td><td>3</td></tr>
</table>
</div>
<div class="box_type_ms">
<div class="sise_guide_date">24.01.02</div>
<table summary="순매수">
<tr><td><a href="?code=005930">삼성전자</a></td><td>1</td><td>2</td><td>3</td></tr>
</table>
</div>`

	snapshots := ParseNetBuy(html)
	if len(snapshots) != 2 {
		t.Fatalf("ParseNetBuy() returned %d snapshots, want 2", len(snapshots))
	}
	if snapshots[0].AsOf != "2024-01-02" {
		t.Errorf("first AsOf = %q, want the dated section", snapshots[0].AsOf)
	}
	if snapshots[1].AsOf != "날짜 없음" {
		t.Errorf("last AsOf = %q, want the raw unparsable label", snapshots[1].AsOf)
	}
	if snapshots[1].AsOfLabel != "날짜 없음" {
		t.Errorf("last AsOfLabel = %q, want the raw unparsable label", snapshots[1].AsOfLabel)
	}
}

func TestParseNetBuy_RowCap(t *testing.T) {
	rows := ""
	for i := 0; i < 40; i++ {
		rows += `<tr><td><a href="?code=005930">종목</a></td><td>1</td><td>2</td><td>3</td></tr>`
	}
	html := `<div class="box_type_ms"><div class="sise_guide_date">24.03.15</div>` +
		`<table summary="순매수">` + rows + `</table></div>`

	snapshots := ParseNetBuy(html)
	if len(snapshots) != 1 {
		t.Fatalf("ParseNetBuy() returned %d snapshots, want 1", len(snapshots))
	}
	if len(snapshots[0].Items) != 30 {
		t.Errorf("items = %d, want capped at 30", len(snapshots[0].Items))
	}
	if last := snapshots[0].Items[29]; last.Rank != 30 {
		t.Errorf("last rank = %d, want 30", last.Rank)
	}
}

func TestNormalizeDateLabel(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantAsOf  string
		wantLabel string
	}{
		{"dots", "24.03.15", "2024-03-15", "2024년 03월 15일"},
		{"dashes", "24-03-15", "2024-03-15", "2024년 03월 15일"},
		{"slashes", "24/03/15", "2024-03-15", "2024년 03월 15일"},
		{"embedded", "기준일 24.03.15 현재", "2024-03-15", "2024년 03월 15일"},
		{"unparsable", "날짜 미상", "날짜 미상", "날짜 미상"},
		{"empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asOf, label, _ := normalizeDateLabel(tt.raw)
			if asOf != tt.wantAsOf {
				t.Errorf("asOf = %q, want %q", asOf, tt.wantAsOf)
			}
			if label != tt.wantLabel {
				t.Errorf("label = %q, want %q", label, tt.wantLabel)
			}
		})
	}
}

func TestNetBuyFeed_Fetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=euc-kr")
		w.Write(encodeEUCKR(t, netBuyFixture))
	}))
	defer server.Close()

	feed := NewNetBuyFeed(server.URL)
	snapshots, err := feed.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() returned unexpected error: %v", err)
	}
	if len(snapshots) != 2 {
		t.Fatalf("Fetch() returned %d snapshots, want 2", len(snapshots))
	}
	if got := snapshots[0].Items[0].Name; got != "삼성전자" {
		t.Errorf("decoded name = %q, want %q", got, "삼성전자")
	}
	if feed.Source() != server.URL {
		t.Errorf("Source() = %q, want %q", feed.Source(), server.URL)
	}
}

func TestNetBuyFeed_Fetch_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	feed := NewNetBuyFeed(server.URL)
	_, err := feed.Fetch(context.Background())
	if err == nil {
		t.Fatal("Fetch() returned nil error for a 403 response")
	}

	fe, ok := fetcher.AsError(err)
	if !ok {
		t.Fatalf("Fetch() error is not structured: %v", err)
	}
	if fe.Type != fetcher.ErrorTypeTransport {
		t.Errorf("Type = %q, want %q", fe.Type, fetcher.ErrorTypeTransport)
	}
	if fe.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want %d", fe.StatusCode, http.StatusForbidden)
	}
}

func TestNetBuyFeed_Fetch_EmptyDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>empty</body></html>`))
	}))
	defer server.Close()

	feed := NewNetBuyFeed(server.URL)
	_, err := feed.Fetch(context.Background())
	if err == nil {
		t.Fatal("Fetch() returned nil error for a page without sections")
	}

	fe, ok := fetcher.AsError(err)
	if !ok || fe.Type != fetcher.ErrorTypeParse {
		t.Errorf("error = %v, want a parse error", err)
	}
}
