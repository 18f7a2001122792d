package sector

import (
	"testing"

	"github.com/hsgraph/hsg/pkg/memory/model"
)

func TestClassifyProcedural(t *testing.T) {
	got := Classify("First, install the package. Then, configure the server and run the command.")
	if got != model.SectorProcedural {
		t.Fatalf("expected procedural, got %s", got)
	}
}

func TestClassifyEmotional(t *testing.T) {
	got := Classify("I feel so happy and grateful today, though I was worried earlier.")
	if got != model.SectorEmotional {
		t.Fatalf("expected emotional, got %s", got)
	}
}

func TestClassifyEpisodic(t *testing.T) {
	got := Classify("Yesterday I went to the store and met with an old friend.")
	if got != model.SectorEpisodic {
		t.Fatalf("expected episodic, got %s", got)
	}
}

func TestClassifyReflective(t *testing.T) {
	got := Classify("Looking back, I think the lesson learned here is to reflect more often. In conclusion, this is a pattern.")
	if got != model.SectorReflective {
		t.Fatalf("expected reflective, got %s", got)
	}
}

func TestClassifyDefaultsToSemantic(t *testing.T) {
	got := Classify("The mitochondria is the powerhouse of the cell.")
	if got != model.SectorSemantic {
		t.Fatalf("expected semantic default, got %s", got)
	}
}

func TestClassifyEmptyTextDefaultsToSemantic(t *testing.T) {
	if got := Classify(""); got != model.SectorSemantic {
		t.Fatalf("expected semantic default for empty text, got %s", got)
	}
}
