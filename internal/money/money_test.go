package money

import "testing"

func TestGrossTopupPrice_ScenarioOne(t *testing.T) {
	base, vat, total, err := GrossTopupPrice(FromFloat(100), 0.15, 0.03, FromFloat(2.00))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base != FromFloat(100.00) {
		t.Errorf("base = %v, want 100.00", base)
	}
	if vat != FromFloat(15.00) {
		t.Errorf("vat = %v, want 15.00", vat)
	}
	if total != FromFloat(120.62) {
		t.Errorf("total = %v, want 120.62", total)
	}
}

func TestGrossTopupPrice_GatewayRateOfOneFailsLoudly(t *testing.T) {
	_, _, _, err := GrossTopupPrice(FromFloat(100), 0.15, 1.0, FromFloat(2.00))
	if err == nil {
		t.Fatal("expected error when gateway rate == 1")
	}
}

func TestSplitGift_ScenarioTwo(t *testing.T) {
	split, err := SplitGift(FromFloat(100.00), 0.25, 0.15)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if split.CommissionGross != FromFloat(25.00) {
		t.Errorf("commission_gross = %v, want 25.00", split.CommissionGross)
	}
	if split.VATOnCommission != FromFloat(3.75) {
		t.Errorf("vat_on_commission = %v, want 3.75", split.VATOnCommission)
	}
	if split.CommissionNet != FromFloat(21.25) {
		t.Errorf("commission_net = %v, want 21.25", split.CommissionNet)
	}
	if split.CreatorPayout != FromFloat(75.00) {
		t.Errorf("creator_payout = %v, want 75.00", split.CreatorPayout)
	}
}

func TestSplitGift_Invariants(t *testing.T) {
	value := FromFloat(4321.77)
	split, err := SplitGift(value, 0.25, 0.15)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if split.CommissionGross+split.CreatorPayout != value {
		t.Errorf("commission_gross + creator_payout = %v, want %v",
			split.CommissionGross+split.CreatorPayout, value)
	}
	if split.CommissionNet+split.VATOnCommission != split.CommissionGross {
		t.Errorf("commission_net + vat_on_commission = %v, want %v",
			split.CommissionNet+split.VATOnCommission, split.CommissionGross)
	}
}

func TestETB_String(t *testing.T) {
	cases := map[ETB]string{
		FromFloat(120.62): "120.62",
		FromFloat(0):       "0.00",
		FromFloat(-5.5):    "-5.50",
	}
	for amount, want := range cases {
		if got := amount.String(); got != want {
			t.Errorf("ETB(%d).String() = %q, want %q", amount, got, want)
		}
	}
}
