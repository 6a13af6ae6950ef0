package domain

// MessageBus carries inbound messages from the chat channel to the loop.
type MessageBus interface {
	Publish(msg InboundMessage)
	Subscribe() <-chan InboundMessage
	Close()
}
