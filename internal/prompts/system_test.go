package prompts

import (
	"strings"
	"testing"
)

func TestSystem(t *testing.T) {
	descriptions := "- get_product_info: Get information about a specific product.\n" +
		"- query_internal_documents: Search internal documents."

	got := System(descriptions)

	if !strings.Contains(got, "Shopping Operations Assistant") {
		t.Error("missing role framing")
	}
	if !strings.Contains(got, "- get_product_info:") {
		t.Error("tool descriptions not interpolated")
	}
	if !strings.Contains(got, "% for percentages") {
		t.Error("percent sign mangled by formatting")
	}

	// Tool order must be preserved verbatim.
	if strings.Index(got, "get_product_info") > strings.Index(got, "query_internal_documents") {
		t.Error("tool order changed")
	}
}
