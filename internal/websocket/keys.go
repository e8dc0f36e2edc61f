// internal/websocket/keys.go
package websocket

import "fmt"

// Shared-store layout. Every instance must agree on these.
const (
	activeSocketsKey    = "active_sockets"
	topicsKey           = "topics"
	topicChannelPrefix  = "pubsub:topic:"
	topicChannelPattern = topicChannelPrefix + "*"
)

func socketKey(connID string) string {
	return fmt.Sprintf("socket:%s", connID)
}

func socketToClientKey(connID string) string {
	return fmt.Sprintf("socket_to_client:%s", connID)
}

func clientSocketsKey(clientID string) string {
	return fmt.Sprintf("client:%s:sockets", clientID)
}

func clientTopicsKey(clientID string) string {
	return fmt.Sprintf("client:%s:topics", clientID)
}

func topicSubscribersKey(topic string) string {
	return fmt.Sprintf("topic:%s:subscribers", topic)
}

func topicChannel(topic string) string {
	return topicChannelPrefix + topic
}
