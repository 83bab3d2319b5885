package service

import (
	"regexp"
	"strings"
)

const (
	payoutBankAccountMinDigits = 9
	payoutBankAccountMaxDigits = 18
	payoutAadhaarDigits        = 12
)

var (
	payoutUpiPattern      = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{1,255}@[A-Za-z]{2,64}$`)
	payoutIfscPattern     = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	payoutPanPattern      = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	payoutNonDigitPattern = regexp.MustCompile(`[^0-9]`)
)

// ifscBankKeywords IFSC 前缀对应的银行名称关键词，用于提示资料填写不一致。
var ifscBankKeywords = map[string]string{
	"SBIN": "state bank",
	"HDFC": "hdfc",
	"ICIC": "icici",
	"UTIB": "axis",
	"PUNB": "punjab national",
	"KKBK": "kotak",
	"YESB": "yes bank",
	"BARB": "baroda",
	"CNRB": "canara",
	"UBIN": "union bank",
	"IDIB": "indian bank",
	"IOBA": "indian overseas",
}

// PayoutKycInput 提现收款资料输入
type PayoutKycInput struct {
	AccountHolder string
	BankAccount   string
	BankIfsc      string
	BankName      string
	City          string
	UpiID         string
	Aadhaar       string
	PanNumber     string
}

// payoutKycSnapshot 校验并清洗后的收款资料快照
type payoutKycSnapshot struct {
	AccountHolder string
	BankAccount   string
	BankIfsc      string
	BankName      string
	City          string
	UpiID         string
	AadhaarMasked string
	PanNumber     string
	IfscMismatch  bool
}

// validatePayoutKyc 校验收款资料并生成存档快照。
// 银行名称与 IFSC 前缀不一致只做提示，不阻断申请。
func validatePayoutKyc(input PayoutKycInput) (payoutKycSnapshot, error) {
	snapshot := payoutKycSnapshot{
		AccountHolder: strings.TrimSpace(input.AccountHolder),
		BankName:      strings.TrimSpace(input.BankName),
		City:          strings.TrimSpace(input.City),
	}
	if snapshot.AccountHolder == "" || snapshot.BankName == "" {
		return snapshot, ErrPayoutKycInvalid
	}

	account := payoutNonDigitPattern.ReplaceAllString(input.BankAccount, "")
	if account == "" {
		return snapshot, ErrPayoutKycInvalid
	}
	if len(account) < payoutBankAccountMinDigits || len(account) > payoutBankAccountMaxDigits {
		return snapshot, ErrPayoutBankAccountInvalid
	}
	snapshot.BankAccount = account

	ifsc := strings.ToUpper(strings.TrimSpace(input.BankIfsc))
	if ifsc == "" {
		return snapshot, ErrPayoutKycInvalid
	}
	if !payoutIfscPattern.MatchString(ifsc) {
		return snapshot, ErrPayoutIfscInvalid
	}
	snapshot.BankIfsc = ifsc

	upi := strings.TrimSpace(input.UpiID)
	if upi != "" && !payoutUpiPattern.MatchString(upi) {
		return snapshot, ErrPayoutUpiInvalid
	}
	snapshot.UpiID = upi

	aadhaarDigits := payoutNonDigitPattern.ReplaceAllString(input.Aadhaar, "")
	if len(aadhaarDigits) != payoutAadhaarDigits {
		return snapshot, ErrPayoutAadhaarInvalid
	}
	snapshot.AadhaarMasked = maskAadhaar(aadhaarDigits)

	pan := strings.ToUpper(strings.TrimSpace(input.PanNumber))
	if pan != "" && !payoutPanPattern.MatchString(pan) {
		return snapshot, ErrPayoutPanInvalid
	}
	snapshot.PanNumber = pan

	snapshot.IfscMismatch = checkIfscBankMismatch(ifsc, snapshot.BankName)
	return snapshot, nil
}

// maskAadhaar 只保留 Aadhaar 后四位，其余位打码存档。
func maskAadhaar(digits string) string {
	if len(digits) < 4 {
		return ""
	}
	return "XXXX-XXXX-" + digits[len(digits)-4:]
}

func checkIfscBankMismatch(ifsc, bankName string) bool {
	if len(ifsc) < 4 || strings.TrimSpace(bankName) == "" {
		return false
	}
	keyword, ok := ifscBankKeywords[ifsc[:4]]
	if !ok {
		return false
	}
	return !strings.Contains(strings.ToLower(bankName), keyword)
}
