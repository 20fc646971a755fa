package mockvenue

import "github.com/tonsurance/btcfloat/pkg/apperrors"

func notFound(positionID string) error {
	return apperrors.NewVenueError(apperrors.VenueNotFound, "no such position: "+positionID, nil)
}
