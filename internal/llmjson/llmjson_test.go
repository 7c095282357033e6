package llmjson

import "testing"

func TestExtractObject(t *testing.T) {
	in := "Sure! Here is the JSON you asked for:\n```json\n{\"a\": 1, \"b\": {\"c\": 2}}\n```\nLet me know."
	obj, ok := ExtractObject(in)
	if !ok {
		t.Fatalf("expected an object")
	}
	if obj != `{"a": 1, "b": {"c": 2}}` {
		t.Fatalf("unexpected object: %s", obj)
	}
}

func TestExtractObjectBracesInStrings(t *testing.T) {
	in := `{"text": "use { and } freely", "n": 1}`
	obj, ok := ExtractObject(in)
	if !ok || obj != in {
		t.Fatalf("got %q ok=%v", obj, ok)
	}
}

func TestExtractObjectNone(t *testing.T) {
	if _, ok := ExtractObject("no json here"); ok {
		t.Fatalf("expected no object")
	}
}

func TestUnmarshalStrict(t *testing.T) {
	var v struct {
		Queries []struct {
			Text string `json:"text"`
		} `json:"queries"`
	}
	in := `preamble {"queries": [{"text": "golden gate bridge"}]} trailing`
	if err := Unmarshal(in, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(v.Queries) != 1 || v.Queries[0].Text != "golden gate bridge" {
		t.Fatalf("unexpected result: %+v", v)
	}
}

func TestUnmarshalRepairsBrokenJSON(t *testing.T) {
	var v struct {
		Selected int    `json:"selected"`
		Reason   string `json:"reason"`
	}
	// trailing comma and single quotes, typical model sloppiness
	in := `{'selected': 2, 'reason': 'closest match',}`
	if err := Unmarshal(in, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.Selected != 2 {
		t.Fatalf("selected = %d, want 2", v.Selected)
	}
}

func TestIntField(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{`{"selected": 3, "reason": "truncated`, 3, true},
		{`{"selected":-1}`, -1, true},
		{`{"reason": "none"}`, 0, false},
		{`"selected": "two"`, 0, false},
	}
	for _, c := range cases {
		got, ok := IntField(c.in, "selected")
		if got != c.want || ok != c.ok {
			t.Fatalf("IntField(%q) = (%d, %v), want (%d, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}
