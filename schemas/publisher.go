package schemas

import "encoding/json"

// PublisherEvent is the envelope published on the broker channel for
// external services (lobby lists, social feeds).
type PublisherEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func RoomCreatedEvent(joinCode, gameTypeId, creatorId string) (string, error) {
	type RoomCreatedContent struct {
		JoinCode   string `json:"joinCode"`
		GameTypeId string `json:"gameTypeId"`
		CreatorId  string `json:"creatorId"`
	}

	content := RoomCreatedContent{
		JoinCode:   joinCode,
		GameTypeId: gameTypeId,
		CreatorId:  creatorId,
	}

	return encode("RoomCreated", content)
}

func RoomEndedEvent(joinCode, gameTypeId, reason string) (string, error) {
	type RoomEndedContent struct {
		JoinCode   string `json:"joinCode"`
		GameTypeId string `json:"gameTypeId"`
		Reason     string `json:"reason"`
	}

	content := RoomEndedContent{
		JoinCode:   joinCode,
		GameTypeId: gameTypeId,
		Reason:     reason,
	}

	return encode("RoomEnded", content)
}

func encode(eventType string, content any) (string, error) {
	message, err := json.Marshal(content)
	if err != nil {
		return "", err
	}

	event := PublisherEvent{
		Type:    eventType,
		Content: string(message),
	}

	e, err := json.Marshal(event)
	if err != nil {
		return "", err
	}

	return string(e), nil
}
