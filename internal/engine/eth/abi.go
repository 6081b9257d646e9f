package eth

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// marketABI is the settlement engine's read/write surface. The 16-field
// getPrediction tuple is positional; decoding depends on this exact order.
const marketABI = `[
  {"type":"function","name":"getPrediction","stateMutability":"view","inputs":[],"outputs":[
    {"name":"question","type":"string"},
    {"name":"outcome1","type":"string"},
    {"name":"outcome2","type":"string"},
    {"name":"oracle","type":"address"},
    {"name":"initialTokenValue","type":"uint256"},
    {"name":"yesTokenReserve","type":"uint256"},
    {"name":"noTokenReserve","type":"uint256"},
    {"name":"isReported","type":"bool"},
    {"name":"yesToken","type":"address"},
    {"name":"noToken","type":"address"},
    {"name":"winningToken","type":"address"},
    {"name":"ethCollateral","type":"uint256"},
    {"name":"lpTradingRevenue","type":"uint256"},
    {"name":"predictionMarketOwner","type":"address"},
    {"name":"initialProbability","type":"uint256"},
    {"name":"percentageLocked","type":"uint256"}
  ]},
  {"type":"function","name":"getBuyPriceInEth","stateMutability":"view","inputs":[
    {"name":"_outcome","type":"uint8"},{"name":"_tradingAmount","type":"uint256"}
  ],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getSellPriceInEth","stateMutability":"view","inputs":[
    {"name":"_outcome","type":"uint8"},{"name":"_tradingAmount","type":"uint256"}
  ],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"buyTokensWithETH","stateMutability":"payable","inputs":[
    {"name":"_outcome","type":"uint8"},{"name":"_amountTokenToBuy","type":"uint256"}
  ],"outputs":[]},
  {"type":"function","name":"sellTokensForEth","stateMutability":"nonpayable","inputs":[
    {"name":"_outcome","type":"uint8"},{"name":"_tradingAmount","type":"uint256"}
  ],"outputs":[]},
  {"type":"function","name":"addLiquidity","stateMutability":"payable","inputs":[],"outputs":[]},
  {"type":"function","name":"removeLiquidity","stateMutability":"nonpayable","inputs":[
    {"name":"_ethToWithdraw","type":"uint256"}
  ],"outputs":[]},
  {"type":"function","name":"redeemWinningTokens","stateMutability":"nonpayable","inputs":[
    {"name":"_amount","type":"uint256"}
  ],"outputs":[]},
  {"type":"function","name":"report","stateMutability":"nonpayable","inputs":[
    {"name":"_winningOutcome","type":"uint8"}
  ],"outputs":[]},
  {"type":"function","name":"resolveMarketAndWithdraw","stateMutability":"nonpayable","inputs":[],"outputs":[]}
]`

// parseABI panics on a malformed constant; it runs once at package init.
func parseABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(marketABI))
	if err != nil {
		panic("eth: parsing market ABI: " + err.Error())
	}
	return parsed
}

var contractABI = parseABI()
