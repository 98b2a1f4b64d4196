package flight

import (
	"github.com/apache/arrow-go/v18/arrow/flight"

	"github.com/hugr-lab/manageql/internal/serialize"
)

// ListFlights returns one FlightInfo whose ticket holds the ZStandard
// compressed Arrow IPC listing of every table and table function (see
// serialize.ListingSchema). Criteria are ignored.
func (s *Server) ListFlights(criteria *flight.Criteria, stream flight.FlightService_ListFlightsServer) error {
	ctx := EnrichContextMetadata(stream.Context())

	listing, err := serialize.SerializeCatalog(ctx, s.catalog, s.name, s.allocator)
	if err != nil {
		return statusError(err, "serialize catalog")
	}
	compressed, err := serialize.Compress(listing)
	if err != nil {
		return statusError(err, "compress catalog")
	}

	s.logger.Debug("ListFlights",
		"uncompressed_bytes", len(listing),
		"compressed_bytes", len(compressed),
	)

	return stream.Send(&flight.FlightInfo{
		FlightDescriptor: &flight.FlightDescriptor{
			Type: flight.DescriptorCMD,
			Cmd:  []byte("ListFlights"),
		},
		Endpoint: []*flight.FlightEndpoint{{
			Ticket: &flight.Ticket{Ticket: compressed},
		}},
		TotalRecords: -1,
		TotalBytes:   int64(len(compressed)),
	})
}
