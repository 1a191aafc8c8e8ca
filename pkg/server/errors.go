package server

import "github.com/RomainDECOSTER/scoutquest/pkg/errors"

func errInvalidNetworkConfig(msg string) error {
	return errors.InvalidArgument(msg, nil)
}
