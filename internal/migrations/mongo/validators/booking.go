package validators

import "go.mongodb.org/mongo-driver/bson"

var numberTypes = []string{"double", "int", "long", "decimal"}

var stepSlot = bson.M{
	"bsonType": "object",
}

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"total_amount",
			"status",
			"version",
			"created_at",
			"updated_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"owner_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"search":    stepSlot,
			"selection": stepSlot,
			"travelers": stepSlot,
			"addons":    stepSlot,
			"review":    stepSlot,

			"total_amount": bson.M{
				"bsonType": numberTypes,
				"minimum":  0,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"draft",
					"in_progress",
					"confirmed",
					"cancelled",
				},
			},

			"version": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},

			"confirmed_at": bson.M{
				"bsonType": "date",
			},

			"cancelled_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
