package models

import "time"

type DealStatus string

const (
	DealPending   DealStatus = "pending"
	DealEscrowed  DealStatus = "escrowed"
	DealPaid      DealStatus = "paid"
	DealReleased  DealStatus = "released"
	DealCancelled DealStatus = "cancelled"
	DealDisputed  DealStatus = "disputed"
)

// DealExpiry is how long a deal stays open for payment. Stored on the
// deal at creation and never recomputed; nothing enforces it actively.
const DealExpiry = 90 * time.Minute

type Deal struct {
	ID               int64      `json:"id"`
	ListingID        int64      `json:"listing_id"`
	BuyerID          int64      `json:"buyer_id"`
	SellerID         int64      `json:"seller_id"`
	UsdtAmount       float64    `json:"usdt_amount"`
	EtbAmount        float64    `json:"etb_amount"`
	TradeCode        string     `json:"trade_code"`
	EscrowWallet     string     `json:"escrow_wallet"`
	Status           DealStatus `json:"status"`
	PaymentMethod    string     `json:"payment_method"`
	CommissionAmount float64    `json:"commission_amount"`
	ExpiresAt        time.Time  `json:"expires_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// DealDetail is a deal with its listing and counterparty rows joined in,
// returned by deal lookups.
type DealDetail struct {
	Deal
	Listing *Listing `json:"listing,omitempty"`
	Buyer   *User    `json:"buyer,omitempty"`
	Seller  *User    `json:"seller,omitempty"`
}
