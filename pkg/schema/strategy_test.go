package schema

import (
	"reflect"
	"testing"

	"github.com/kadirpekel/graphmind/pkg/graph"
)

func strategySchema() *GraphSchema {
	return &GraphSchema{
		NodeTypes: []NodeTypeInfo{
			{Label: "Person", Properties: map[string]graph.PropertyInfo{
				"name": {Name: "name", Kind: graph.KindString, Samples: []string{"Einstein", "Curie"}},
			}},
			{Label: "Theory", Properties: map[string]graph.PropertyInfo{
				"name": {Name: "name", Kind: graph.KindString, Samples: []string{"Relativity"}},
			}},
			{Label: "Location"},
		},
		RelationshipTypes: []RelationshipTypeInfo{
			{Type: "DEVELOPED"},
			{Type: "WORKED_AT"},
			{Type: "LOCATED_IN"},
		},
		StopWords:       DefaultStopWords,
		RelationWeights: map[string]float64{"DEVELOPED": 1.0, "WORKED_AT": 1.0, "LOCATED_IN": 1.0},
		SearchProperties: map[string][]string{
			"Person": {"name"},
			"Theory": {"name"},
		},
	}
}

func TestDeriveStrategy_RanksMatchingTypes(t *testing.T) {
	s := strategySchema()
	st := s.DeriveStrategy("Who developed the theory of Relativity? Einstein?")

	if len(st.NodeTypes) == 0 {
		t.Fatal("no node types scored")
	}
	// Sample values "Einstein" and "Relativity" appear in the question,
	// so Person and Theory must outrank Location.
	for _, nt := range st.NodeTypes {
		if nt.Name == "Location" && nt.Score >= st.NodeTypes[0].Score {
			t.Errorf("Location outranked matching types: %+v", st.NodeTypes)
		}
	}

	if len(st.RelationTypes) == 0 || st.RelationTypes[0].Name != "DEVELOPED" {
		t.Errorf("relation ranking = %+v, want DEVELOPED first", st.RelationTypes)
	}

	if !st.IsEffective() {
		t.Error("strategy with strong matches should be effective")
	}
}

func TestDeriveStrategy_Ineffective(t *testing.T) {
	s := strategySchema()
	st := s.DeriveStrategy("completely unrelated cooking question")

	if st.IsEffective() {
		t.Errorf("unrelated question produced an effective strategy: %+v", st)
	}
}

func TestDeriveStrategy_SortedDescending(t *testing.T) {
	st := strategySchema().DeriveStrategy("Where did Einstein work? developed located")
	for i := 1; i < len(st.RelationTypes); i++ {
		if st.RelationTypes[i].Score > st.RelationTypes[i-1].Score {
			t.Errorf("relation scores not descending: %+v", st.RelationTypes)
		}
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		stops []string
		want  []string
	}{
		{
			name: "english with stop words",
			text: "Who developed the Theory of Relativity?",
			stops: DefaultStopWords,
			want: []string{"developed", "theory", "relativity"},
		},
		{
			name: "cjk splits per character",
			text: "A与B的关系",
			stops: nil,
			want: []string{"a", "与", "b", "的", "关", "系"},
		},
		{
			name: "cjk stop characters filtered",
			text: "张三的朋友",
			stops: []string{"的"},
			want: []string{"张", "三", "朋", "友"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Tokenize(tt.text, tt.stops); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"WORKED_AT", []string{"worked", "at"}},
		{"PersonName", []string{"person", "name"}},
		{"simple", []string{"simple"}},
		{"DEVELOPED", []string{"developed"}},
	}
	for _, tt := range tests {
		if got := splitName(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitName(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
