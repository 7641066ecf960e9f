package mongodb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/goevery/sitepush/internal/notification"
	"github.com/goevery/sitepush/internal/persistence"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const historyRetention = 30 * 24 * time.Hour

type Notification struct {
	Id             bson.ObjectID `bson:"_id"`
	NotificationId string        `bson:"notificationId"`
	UserId         string        `bson:"userId"`
	Type           string        `bson:"type"`
	Title          string        `bson:"title"`
	Message        string        `bson:"message"`
	Data           string        `bson:"data"`
	CreateTime     time.Time     `bson:"createTime"`
}

type PersistenceEngine struct {
	collection *mongo.Collection
}

func NewPersistenceEngine(client *mongo.Client, databaseName string) *PersistenceEngine {
	database := client.Database(databaseName)
	collection := database.Collection("notifications")

	return &PersistenceEngine{
		collection,
	}
}

func (e *PersistenceEngine) Setup(ctx context.Context) error {
	ttlIndexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "createTime", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(historyRetention.Seconds())),
	}

	userIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "userId", Value: 1},
			{Key: "_id", Value: -1},
		},
	}

	_, err := e.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{ttlIndexModel, userIndexModel})

	return err
}

func (e *PersistenceEngine) Save(ctx context.Context, request persistence.SaveRequest) error {
	documents, err := newDocuments(request)
	if err != nil || len(documents) == 0 {
		return err
	}

	_, err = e.collection.InsertMany(ctx, documents)

	return err
}

func (e *PersistenceEngine) List(ctx context.Context, userId string, limit int) ([]notification.Notification, error) {
	query := newHistoryQuery(userId, limit)
	opts := options.Find().
		SetSort(query.Sort).
		SetLimit(query.Limit)

	result, err := e.collection.Find(ctx, query.Filter, opts)
	if err != nil {
		return nil, err
	}

	var mongoNotifications []Notification
	err = result.All(ctx, &mongoNotifications)
	if err != nil {
		return nil, err
	}

	notifications := make([]notification.Notification, len(mongoNotifications))
	for i, m := range mongoNotifications {
		notifications[i], err = m.toNotification()
		if err != nil {
			return nil, err
		}
	}

	return notifications, nil
}

// newDocuments fans a notification out into one document per recipient.
func newDocuments(request persistence.SaveRequest) ([]Notification, error) {
	if len(request.UserIds) == 0 {
		return nil, nil
	}

	n := request.Notification

	dataJson, err := json.Marshal(n.Data)
	if err != nil {
		return nil, err
	}

	documents := make([]Notification, len(request.UserIds))
	for i, userId := range request.UserIds {
		documents[i] = Notification{
			Id:             bson.NewObjectID(),
			NotificationId: n.Id,
			UserId:         userId,
			Type:           n.Type.String(),
			Title:          n.Title,
			Message:        n.Message,
			Data:           string(dataJson),
			CreateTime:     n.Timestamp,
		}
	}

	return documents, nil
}

type historyQuery struct {
	Filter bson.M
	Sort   bson.D
	Limit  int64
}

// newHistoryQuery matches the user's own documents and broadcasts, newest
// first.
func newHistoryQuery(userId string, limit int) historyQuery {
	return historyQuery{
		Filter: bson.M{
			"userId": bson.M{"$in": bson.A{userId, persistence.BroadcastAudience}},
		},
		Sort:  bson.D{{Key: "_id", Value: -1}},
		Limit: int64(limit),
	}
}

func (m Notification) toNotification() (notification.Notification, error) {
	notificationType, err := notification.ParseType(m.Type)
	if err != nil {
		return notification.Notification{}, err
	}

	var data map[string]any
	if m.Data != "" {
		if err := json.Unmarshal([]byte(m.Data), &data); err != nil {
			return notification.Notification{}, err
		}
	}

	return notification.Notification{
		Id:        m.NotificationId,
		Type:      notificationType,
		Title:     m.Title,
		Message:   m.Message,
		Data:      data,
		Timestamp: m.CreateTime.UTC(),
	}, nil
}
