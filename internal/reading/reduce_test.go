package reading

import "testing"

func TestReduce(t *testing.T) {
	testCases := []struct {
		name   string
		page   string
		mode   ReadingMode
		amount int
		want   string
	}{
		{name: "full page unchanged", page: "a. b. c.", mode: ModeFullPage, amount: 1, want: "a. b. c."},
		{name: "unknown mode unchanged", page: "a. b.", mode: ReadingMode("verses"), amount: 1, want: "a. b."},
		{name: "two sentences", page: "Hello. World. Foo.", mode: ModeSentences, amount: 2, want: "Hello.  World."},
		{name: "sentence terminator runs", page: "Wait?! Really... Yes", mode: ModeSentences, amount: 3, want: "Wait.  Really.  Yes."},
		{name: "amount beyond sentences", page: "Only one", mode: ModeSentences, amount: 5, want: "Only one."},
		{name: "empty sentence page", page: "", mode: ModeSentences, amount: 2, want: ""},
		{name: "paragraphs", page: "p1\n\np2\n\np3", mode: ModeParagraphs, amount: 2, want: "p1\n\np2"},
		{name: "paragraph amount beyond count", page: "p1\n\np2", mode: ModeParagraphs, amount: 9, want: "p1\n\np2"},
		{name: "joined page has one paragraph", page: "p1 p2 p3", mode: ModeParagraphs, amount: 1, want: "p1 p2 p3"},
		{name: "zero amount acts as one", page: "p1\n\np2", mode: ModeParagraphs, amount: 0, want: "p1"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			got := Reduce(testCase.page, testCase.mode, testCase.amount)
			if got != testCase.want {
				t.Fatalf("expected %q, got %q", testCase.want, got)
			}
		})
	}
}

func TestReduceSentencesAmountOne(t *testing.T) {
	if got := Reduce("First one. Second one.", ModeSentences, 1); got != "First one." {
		t.Fatalf("unexpected reduction %q", got)
	}
}
