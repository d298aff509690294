package core

// referenceBids is the fixture shared by the screening, allocation and
// clearing-price tests.
func referenceBids() (b1, b2, b3, b4, b5 Bid) {
	b1 = Bid{ID: "b1", AuctionID: "a", Timestamp: 95, Volume: 100, Price: 0.6, Bidder: "aaaa"}
	b2 = Bid{ID: "b2", AuctionID: "a", Timestamp: 95, Volume: 100, Price: 0.4, Bidder: "aaaa"}
	b3 = Bid{ID: "b3", AuctionID: "a", Timestamp: 1100, Volume: 110, Price: 0.7, Bidder: "aaaa"}
	b4 = Bid{ID: "b4", AuctionID: "b", Timestamp: 95, Volume: 100, Price: 0.71, Bidder: "aaaa"}
	b5 = Bid{ID: "b5", AuctionID: "a", Timestamp: 95, Volume: 90, Price: 0.8, Bidder: "abaa"}
	return
}

var testPolicy = VoucherPolicy{Token: "token_contract", Treasury: "mine_treasury"}
