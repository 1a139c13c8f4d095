package pipeline

import "testing"

func TestSanitizeCitationNumbersDropsOutOfRange(t *testing.T) {
	nums := sanitizeCitationNumbers("Claim [1] and [5] and [2].", 2)
	if len(nums) != 2 || nums[0] != 1 || nums[1] != 2 {
		t.Fatalf("expected [1 2], got %v", nums)
	}
}

func TestSanitizeCitationNumbersIsIdempotent(t *testing.T) {
	answer := "Claim [2] and [1] and [1]."
	once := sanitizeCitationNumbers(answer, 2)
	rebuilt := "Claim [" + itoa(once[0]) + "] [" + itoa(once[1]) + "]"
	twice := sanitizeCitationNumbers(rebuilt, 2)
	if len(once) != len(twice) {
		t.Fatalf("expected idempotent sanitize, got %v then %v", once, twice)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func TestNeedsCitationCheckProseBlockOver40Chars(t *testing.T) {
	answer := "This is a long prose statement that definitely exceeds forty characters."
	if !needsCitationCheck(answer) {
		t.Fatalf("expected long uncited prose block to need citation")
	}
}

func TestNeedsCitationCheckShortProseOK(t *testing.T) {
	answer := "Too short."
	if needsCitationCheck(answer) {
		t.Fatalf("did not expect short prose to require citation")
	}
}

func TestNeedsCitationCheckCitedProseOK(t *testing.T) {
	answer := "This is a long prose statement that definitely exceeds forty chars [1]."
	if needsCitationCheck(answer) {
		t.Fatalf("did not expect cited prose to need citation")
	}
}

func TestNeedsCitationCheckBulletsRequireEach(t *testing.T) {
	answer := "- This is a long enough bullet point without citation here\n- Short [1]"
	if !needsCitationCheck(answer) {
		t.Fatalf("expected uncited long bullet to need citation")
	}
}

func TestNeedsCitationCheckIgnoresFencedCode(t *testing.T) {
	answer := "```\nthis is code that looks long but is not prose at all\n```"
	if needsCitationCheck(answer) {
		t.Fatalf("did not expect fenced code block to require citation")
	}
}
