package types

// ChainFamily classifies a network into a blockchain family.
type ChainFamily string

const (
	ChainSolana ChainFamily = "solana"
	ChainEVM    ChainFamily = "evm"
)

func (f ChainFamily) String() string {
	return string(f)
}

// Rail is a payment method family. The set of rails is closed: only the
// types in this package implement it, so a type switch over Rail is
// exhaustive once every case below is handled.
type Rail interface {
	isRail()
	Method() PaymentMethod
}

// PayPalRail is a redirect checkout; no on-chain settlement.
type PayPalRail struct{}

// SolanaRail is an SPL token transfer on Solana.
type SolanaRail struct {
	Token string
}

// EVMRail is an ERC-20 transfer on an EVM L2.
type EVMRail struct {
	Network Network
	Token   string
}

func (PayPalRail) isRail() {}
func (SolanaRail) isRail() {}
func (EVMRail) isRail()    {}

func (PayPalRail) Method() PaymentMethod { return MethodPayPal }

func (r SolanaRail) Method() PaymentMethod {
	switch r.Token {
	case "EURC":
		return MethodSolanaEURC
	default:
		return MethodSolanaUSDC
	}
}

func (r EVMRail) Method() PaymentMethod {
	switch r.Token {
	case "EURC":
		return MethodBaseEURC
	default:
		return MethodBaseUSDC
	}
}

// RailNetwork returns the settlement network of the rail, if any
func RailNetwork(r Rail) (Network, bool) {
	switch rail := r.(type) {
	case SolanaRail:
		return NetworkSolana, true
	case EVMRail:
		return rail.Network, true
	default:
		return "", false
	}
}

// Rail decodes the payment method literal into its rail variant
func (m PaymentMethod) Rail() (Rail, error) {
	switch m {
	case MethodPayPal:
		return PayPalRail{}, nil
	case MethodSolanaUSDC:
		return SolanaRail{Token: "USDC"}, nil
	case MethodSolanaEURC:
		return SolanaRail{Token: "EURC"}, nil
	case MethodBaseUSDC:
		return EVMRail{Network: NetworkBase, Token: "USDC"}, nil
	case MethodBaseEURC:
		return EVMRail{Network: NetworkBase, Token: "EURC"}, nil
	default:
		return nil, NewError(ErrUnsupportedToken, "unsupported payment method: "+string(m))
	}
}

// IsCrypto reports whether the method settles on-chain
func (m PaymentMethod) IsCrypto() bool {
	rail, err := m.Rail()
	if err != nil {
		return false
	}
	_, ok := RailNetwork(rail)
	return ok
}
