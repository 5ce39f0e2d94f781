package claims

// ComputeNetFee returns providerFees + memberCoinsurance + memberCopay -
// allowedFees in exact decimal arithmetic. Negative results are valid: they
// record an allowed fee above what was billed and collected.
func ComputeNetFee(providerFees, memberCoinsurance, memberCopay, allowedFees Money) Money {
	return Money{providerFees.Add(memberCoinsurance.Decimal).
		Add(memberCopay.Decimal).
		Sub(allowedFees.Decimal)}
}

// SumNetFees totals the net fees of lines.
func SumNetFees(lines []*ClaimLine) Money {
	var total Money
	for _, l := range lines {
		total = Money{total.Add(l.NetFee.Decimal)}
	}
	return total
}
