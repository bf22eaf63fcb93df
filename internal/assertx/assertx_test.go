package assertx

import "testing"

func TestPassingAssertions(t *testing.T) {
	Equal(t, 3, 1+2)
	Equal(t, "a", "a")
	NoError(t, nil, "nothing")
	Contains(t, "due today: report", "today", "report")
	Contains(t, "anything")
}
