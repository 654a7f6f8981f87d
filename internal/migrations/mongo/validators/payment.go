package validators

import "go.mongodb.org/mongo-driver/bson"

var PaymentValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"booking_id",
			"amount",
			"amount_minor",
			"currency",
			"provider",
			"txn_ref",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"booking_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"amount": bson.M{
				"bsonType": numberTypes,
				"minimum":  0,
			},

			"amount_minor": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},

			"currency": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 3,
			},

			"provider": bson.M{
				"bsonType": "string",
			},

			"txn_ref": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"success", "failed"},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
