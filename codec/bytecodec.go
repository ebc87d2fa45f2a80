package codec

// ByteDecoder treats an incoming message as a raw byte vector, sized
// exactly from the probed status — the Go equivalent of
// RecvInto::recv_into_vec, which sizes a Vec<T> directly from Status::count
// rather than asking the caller for a length.
type ByteDecoder struct{}

func (ByteDecoder) Decode(port RecvPort[byte]) <-chan []byte {
	return port.Recv(make([]byte, port.Status().Count))
}

// ByteEncoder submits a message as-is under tag 0, the default chosen by
// the trivial codec.
type ByteEncoder struct{}

func (ByteEncoder) Encode(msg []byte, port SendPort[byte]) <-chan struct{} {
	return port.Send(msg, 0)
}

// ByteCodec treats messages as byte vectors and uses tag zero: a trivial
// illustration codec (U8Codec in the reference implementation it mirrors).
type ByteCodec struct {
	ByteDecoder
	ByteEncoder
}
