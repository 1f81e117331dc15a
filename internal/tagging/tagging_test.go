package tagging

import "testing"

func TestSuggestFromOpenPortsPrinterSignature(t *testing.T) {
	out := SuggestFromOpenPorts([]int32{9100, 22})
	if len(out) != 1 || out[0].Tag != TagPrinter {
		t.Fatalf("suggestions = %+v, want single printer tag", out)
	}
}

func TestSuggestFromOpenPortsRouterNeedsBothDNSAndDHCP(t *testing.T) {
	if got := SuggestFromOpenPorts([]int32{53}); len(got) != 0 {
		t.Fatalf("dns alone should not suggest router, got %+v", got)
	}
	out := SuggestFromOpenPorts([]int32{53, 67})
	if len(out) != 1 || out[0].Tag != TagRouter {
		t.Fatalf("suggestions = %+v, want single router tag", out)
	}
}

func TestSuggestFromOpenPortsCameraAndNAS(t *testing.T) {
	out := SuggestFromOpenPorts([]int32{554, 2049})
	tags := map[string]bool{}
	for _, s := range out {
		tags[s.Tag] = true
	}
	if !tags[TagCamera] || !tags[TagNAS] {
		t.Fatalf("suggestions = %+v, want camera+nas", out)
	}
}

func TestMergeSuggestionsKeepsHighestConfidence(t *testing.T) {
	low := []Suggestion{{Tag: "printer", Confidence: 50}}
	high := []Suggestion{{Tag: "printer", Confidence: 85}}
	merged := MergeSuggestions(low, high)
	if len(merged) != 1 || merged[0].Confidence != 85 {
		t.Fatalf("merged = %+v, want confidence 85", merged)
	}
}

func TestNormalizeTagListDropsInvalidAndDuplicates(t *testing.T) {
	got := NormalizeTagList([]string{"Printer", "printer", "not-a-tag", ""})
	if len(got) != 1 || got[0] != TagPrinter {
		t.Fatalf("NormalizeTagList = %v", got)
	}
}
