package service

import (
	"errors"
	"testing"
)

func TestValidatePayoutKycBuildsSnapshot(t *testing.T) {
	snapshot, err := validatePayoutKyc(PayoutKycInput{
		AccountHolder: "  Rahul Sharma  ",
		BankAccount:   "1234-5678-9012",
		BankIfsc:      " hdfc0001234 ",
		BankName:      " HDFC Bank ",
		City:          " Mumbai ",
		UpiID:         " rahul@okhdfcbank ",
		Aadhaar:       "1234 5678 9012",
		PanNumber:     " abcde1234f ",
	})
	if err != nil {
		t.Fatalf("validate kyc: %v", err)
	}
	if snapshot.AccountHolder != "Rahul Sharma" || snapshot.BankName != "HDFC Bank" || snapshot.City != "Mumbai" {
		t.Fatalf("trimmed fields = %q/%q/%q", snapshot.AccountHolder, snapshot.BankName, snapshot.City)
	}
	if snapshot.BankAccount != "123456789012" {
		t.Fatalf("bank account = %q, want digits only", snapshot.BankAccount)
	}
	if snapshot.BankIfsc != "HDFC0001234" {
		t.Fatalf("ifsc = %q, want uppercase", snapshot.BankIfsc)
	}
	if snapshot.UpiID != "rahul@okhdfcbank" {
		t.Fatalf("upi = %q", snapshot.UpiID)
	}
	// Aadhaar 原文不落库，只存打码后的尾号。
	if snapshot.AadhaarMasked != "XXXX-XXXX-9012" {
		t.Fatalf("aadhaar masked = %q", snapshot.AadhaarMasked)
	}
	if snapshot.PanNumber != "ABCDE1234F" {
		t.Fatalf("pan = %q, want uppercase", snapshot.PanNumber)
	}
	if snapshot.IfscMismatch {
		t.Fatalf("ifsc mismatch = true for matching bank name")
	}
}

func TestValidatePayoutKycRejectsBadInput(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(input *PayoutKycInput)
		want   error
	}{
		{"empty holder", func(input *PayoutKycInput) { input.AccountHolder = "   " }, ErrPayoutKycInvalid},
		{"empty bank name", func(input *PayoutKycInput) { input.BankName = "" }, ErrPayoutKycInvalid},
		{"account without digits", func(input *PayoutKycInput) { input.BankAccount = "----" }, ErrPayoutKycInvalid},
		{"account too short", func(input *PayoutKycInput) { input.BankAccount = "12345678" }, ErrPayoutBankAccountInvalid},
		{"account too long", func(input *PayoutKycInput) { input.BankAccount = "1234567890123456789" }, ErrPayoutBankAccountInvalid},
		{"empty ifsc", func(input *PayoutKycInput) { input.BankIfsc = "" }, ErrPayoutKycInvalid},
		{"ifsc too short", func(input *PayoutKycInput) { input.BankIfsc = "HDFC123" }, ErrPayoutIfscInvalid},
		{"ifsc without zero", func(input *PayoutKycInput) { input.BankIfsc = "HDFC1001234" }, ErrPayoutIfscInvalid},
		{"upi without handle", func(input *PayoutKycInput) { input.UpiID = "@okhdfcbank" }, ErrPayoutUpiInvalid},
		{"upi numeric domain", func(input *PayoutKycInput) { input.UpiID = "rahul@123" }, ErrPayoutUpiInvalid},
		{"aadhaar too short", func(input *PayoutKycInput) { input.Aadhaar = "12345" }, ErrPayoutAadhaarInvalid},
		{"aadhaar missing", func(input *PayoutKycInput) { input.Aadhaar = "" }, ErrPayoutAadhaarInvalid},
		{"aadhaar too long", func(input *PayoutKycInput) { input.Aadhaar = "1234567890123" }, ErrPayoutAadhaarInvalid},
		{"pan malformed", func(input *PayoutKycInput) { input.PanNumber = "ABC123" }, ErrPayoutPanInvalid},
	}
	for _, tc := range cases {
		input := validKycInput()
		tc.mutate(&input)
		if _, err := validatePayoutKyc(input); !errors.Is(err, tc.want) {
			t.Fatalf("%s: error = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestValidatePayoutKycOptionalFields(t *testing.T) {
	input := validKycInput()
	input.UpiID = ""
	input.PanNumber = ""
	input.City = ""
	snapshot, err := validatePayoutKyc(input)
	if err != nil {
		t.Fatalf("validate kyc without optional fields: %v", err)
	}
	if snapshot.UpiID != "" || snapshot.PanNumber != "" || snapshot.City != "" {
		t.Fatalf("optional fields = %q/%q/%q, want empty", snapshot.UpiID, snapshot.PanNumber, snapshot.City)
	}
}

func TestCheckIfscBankMismatch(t *testing.T) {
	cases := []struct {
		ifsc     string
		bankName string
		want     bool
	}{
		{"SBIN0001234", "HDFC Bank", true},
		{"SBIN0001234", "State Bank of India", false},
		{"ICIC0000042", "ICICI Bank Ltd", false},
		{"UTIB0000100", "Axis Bank", false},
		{"UTIB0000100", "Union Bank", true},
		{"ZZZZ0001234", "Anything Bank", false},
		{"HD", "HDFC Bank", false},
	}
	for _, tc := range cases {
		if got := checkIfscBankMismatch(tc.ifsc, tc.bankName); got != tc.want {
			t.Fatalf("mismatch(%s, %s) = %v, want %v", tc.ifsc, tc.bankName, got, tc.want)
		}
	}
}

func TestMaskAadhaar(t *testing.T) {
	if got := maskAadhaar("123456789012"); got != "XXXX-XXXX-9012" {
		t.Fatalf("mask = %q", got)
	}
	if got := maskAadhaar("123"); got != "" {
		t.Fatalf("short mask = %q, want empty", got)
	}
}
