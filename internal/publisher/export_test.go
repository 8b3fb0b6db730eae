package publisher

// Conn exposes the connection seam to the external test package.
type Conn = conn

func NewWithConn(nc Conn, subject string, m PublisherMetrics) *NATSPublisher {
	return newPublisher(nc, subject, m)
}
