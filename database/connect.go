package database

import (
	"context"
	"fmt"
	"log"

	"digimy/config"
	"digimy/dto/model"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var MongoClient *mongo.Client

func ConnectDB() {
	var err error

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		config.Config("DB_HOST", "localhost"),
		config.Config("DB_USER", ""),
		config.Config("DB_PASSWORD", ""),
		config.Config("DB_NAME", "digimy"),
		config.Config("DB_PORT", "5432"))

	// TranslateError supaya pelanggaran unique index jadi gorm.ErrDuplicatedKey
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		panic("failed to connect to database")
	}

	fmt.Println("Connection Opened to Database")

	err = DB.AutoMigrate(
		&model.Transactions{},
		&model.TransactionItem{},
		&model.TransitionRecord{},
		&model.Invoice{},
		&model.PayoutAdjustment{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	fmt.Println("Database Migrated")
}

func SetupMongoDB() {
	uri := config.Config("MONGODB_URI", "")
	if uri == "" {
		log.Println("MONGODB_URI not set, gateway event audit disabled")
		return
	}

	var err error
	MongoClient, err = mongo.Connect(context.TODO(), options.Client().ApplyURI(uri))
	if err != nil {
		panic("failed to connect to MongoDB")
	}

	log.Println("Connected to MongoDB")
}

func GetCollection(databaseName, collectionName string) *mongo.Collection {
	if MongoClient == nil {
		return nil
	}
	return MongoClient.Database(databaseName).Collection(collectionName)
}
