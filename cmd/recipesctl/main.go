// Command recipesctl is the operator CLI: schema migrations, ingredient
// imports, user provisioning and token minting.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("recipesctl")
		os.Exit(1)
	}
}
