package constants

const (
	ViewData             = "view_data"
	PublishDemand        = "publish_demand"
	WithdrawDemand       = "withdraw_demand"
	CreateSupplyListing  = "create_supply_listing"
	GenerateMatches      = "generate_matches"
	RespondToMatch       = "respond_to_match"
	AcceptMatch          = "accept_match"
	SignContract         = "sign_contract"
	UpdateDelivery       = "update_delivery"
	ExpireMatches        = "expire_matches"
)
