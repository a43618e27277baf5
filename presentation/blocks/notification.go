package blocks

// AddNotification prefixes the message with the configured mention type.
func AddNotification(message, notificationType string) string {
	switch notificationType {
	case "here":
		return "<!here> " + message
	case "channel":
		return "<!channel> " + message
	case "none":
		return message
	default:
		return message
	}
}
