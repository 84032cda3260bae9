package account

var (
	_ Account = (*SpotAccount)(nil)
	_ Account = (*MarginAccount)(nil)
	_ Account = (*FuturesAccount)(nil)
)
