package faucet

import (
	"fmt"
	"strconv"
)

// CommandTokens are stripped from a message before the rest is read as
// an address.
var CommandTokens = []string{"/request", "/schedule", "/approve", "/milestone"}

// FailureMessage is sent when a ledger fault stops a command.
const FailureMessage = "Something went wrong while talking to the chain, please try again later."

const chooseTokenMessage = " Please use the /imbu /kusd /ksm command to receive a new fact"

// CooldownMessage is the limiter's denial text for a cooldown of hours.
func CooldownMessage(hours float64) string {
	return fmt.Sprintf("Sorry please wait for %s hours, between token requests from the same telegram account!",
		strconv.FormatFloat(hours, 'f', -1, 64))
}

func invalidAddressMessage(network uint16) string {
	return fmt.Sprintf("Invalid address! Please use the generic substrate format with address type %d!", network)
}

func helpMessage(faucetName, tokenName string) string {
	return fmt.Sprintf(`Welcome to the %s!
To request for tokens send the message:

"/request ADDRESS"
with your correct %s address.

To open your project for funding send the message:
"/schedule ADDRESS"

To approve your project's funding send the message:
"/approve ADDRESS"

To approve your project's first milestone send the message:
"/milestone ADDRESS"

with your correct %s address.
`, faucetName, tokenName, tokenName)
}
