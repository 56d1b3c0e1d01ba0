package payload

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

const detailScripts = `<html><head>
<script>window.dataLayer = [];</script>
<script type="text/javascript">
  var ProfileStartup = true;
  startup.init({
    listingId: 'abc123',
    listingName: 'Sunset Flats',
    note: 'contains ); inside',
    geo:{latitude: 32.22, longitude: -110.97},
    rentals: [{RentalKey: 'r1', Beds: 1,}],
  });
</script>
<script>var aft = 'tok-42';</script>
</head><body></body></html>`

func TestExtract(t *testing.T) {
	doc := mustDoc(t, detailScripts)

	obj, err := Extract(doc, "ProfileStartup", "startup.init")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got := obj["listingId"]; got != "abc123" {
		t.Fatalf("listingId = %v, want abc123", got)
	}
	if got := obj["note"]; got != "contains ); inside" {
		t.Fatalf("note = %v, want literal with ');'", got)
	}
	geo, ok := obj["geo"].(map[string]any)
	if !ok {
		t.Fatalf("geo = %T, want object", obj["geo"])
	}
	if got := geo["latitude"]; got != json.Number("32.22") {
		t.Fatalf("latitude = %v, want 32.22", got)
	}
	rentals, ok := obj["rentals"].([]any)
	if !ok || len(rentals) != 1 {
		t.Fatalf("rentals = %v, want one entry", obj["rentals"])
	}
}

func TestExtractAnyCall(t *testing.T) {
	doc := mustDoc(t, detailScripts)

	obj, err := Extract(doc, "ProfileStartup", "")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got := obj["listingName"]; got != "Sunset Flats" {
		t.Fatalf("listingName = %v, want Sunset Flats", got)
	}
}

func TestExtractMissingMarker(t *testing.T) {
	doc := mustDoc(t, `<html><script>var x = 1;</script></html>`)

	_, err := Extract(doc, "ProfileStartup", "startup.init")
	var notFound *PayloadNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected PayloadNotFoundError, got %v", err)
	}
	if notFound.Marker != "ProfileStartup" {
		t.Fatalf("marker = %q, want ProfileStartup", notFound.Marker)
	}
}

func TestExtractMissingCall(t *testing.T) {
	doc := mustDoc(t, `<html><script>var ProfileStartup = {};</script></html>`)

	_, err := Extract(doc, "ProfileStartup", "startup.init")
	if !errors.Is(err, ErrCallNotFound) {
		t.Fatalf("expected ErrCallNotFound, got %v", err)
	}
}

func TestExtractUnbalanced(t *testing.T) {
	doc := mustDoc(t, `<html><script>ProfileStartup; startup.init({a: {b: 1}</script></html>`)

	_, err := Extract(doc, "ProfileStartup", "startup.init")
	if !errors.Is(err, ErrUnbalanced) {
		t.Fatalf("expected ErrUnbalanced, got %v", err)
	}
}

func TestDecodeRepairError(t *testing.T) {
	_, err := Decode(`{a: new Date(2020)}`)
	var repairErr *PayloadRepairError
	if !errors.As(err, &repairErr) {
		t.Fatalf("expected PayloadRepairError, got %v", err)
	}
	if !strings.Contains(repairErr.Repaired, `"a"`) {
		t.Fatalf("repaired text %q should carry the partial repair", repairErr.Repaired)
	}
}

func TestExtractCallIgnoresBracesInStrings(t *testing.T) {
	script := `startup.init({a: '}', b: "{", c: {d: 1}}); other.call({z: 1});`
	literal, err := ExtractCall(script, "startup.init")
	if err != nil {
		t.Fatalf("extract call: %v", err)
	}
	want := `{a: '}', b: "{", c: {d: 1}}`
	if literal != want {
		t.Fatalf("literal = %q, want %q", literal, want)
	}
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{name: "var assignment", script: `var aft = 'tok-42';`, want: "tok-42"},
		{name: "object property", script: `window.cfg = {aft: 'abc'};`, want: "abc"},
		{name: "double quotes", script: `aft = "xyz";`, want: "xyz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustDoc(t, "<html><script>"+tt.script+"</script></html>")
			got, err := ExtractToken(doc, "aft", "aft")
			if err != nil {
				t.Fatalf("extract token: %v", err)
			}
			if got != tt.want {
				t.Fatalf("token = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractTokenMissing(t *testing.T) {
	doc := mustDoc(t, `<html><script>var aftEnabled = true;</script></html>`)

	_, err := ExtractToken(doc, "aftEnabled", "aft")
	if !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}

	_, err = ExtractToken(doc, "missingMarker", "aft")
	var notFound *PayloadNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected PayloadNotFoundError, got %v", err)
	}
}

func TestExtractTokenSkipsScriptsWithoutAssignment(t *testing.T) {
	doc := mustDoc(t, `<html>
<script>window.addEventListener('load', function(){ /* run after load */ });</script>
<script>var draft = {crafted: true};</script>
<script>var aft = 'tok-L1';</script>
</html>`)

	got, err := ExtractToken(doc, "aft", "aft")
	if err != nil {
		t.Fatalf("extract token: %v", err)
	}
	if got != "tok-L1" {
		t.Fatalf("token = %q, want tok-L1", got)
	}
}
