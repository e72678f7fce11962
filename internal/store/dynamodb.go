package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
)

// dynamoItem is the table layout of a persisted record
type dynamoItem struct {
	StorageKey string `dynamodbav:"StorageKey"`
	Payload    []byte `dynamodbav:"Payload"`
	UpdatedAt  string `dynamodbav:"UpdatedAt"`
}

// DynamoPersister keeps records as items in a DynamoDB table
type DynamoPersister struct {
	client *dynamodb.Client
	config DynamoConfig
	logger zerolog.Logger
}

// NewDynamoPersister creates a DynamoDB persister; in local mode the table is created if missing
func NewDynamoPersister(ctx context.Context, cfg DynamoConfig, logger zerolog.Logger) (*DynamoPersister, error) {
	var client *dynamodb.Client

	if cfg.Mode == DynamoModeLocal {
		// Built directly: LoadDefaultConfig probes IMDS, which hangs when static
		// credentials are intended.
		client = dynamodb.New(dynamodb.Options{
			Region:       cfg.Region,
			BaseEndpoint: aws.String(cfg.Endpoint),
			Credentials:  credentials.NewStaticCredentialsProvider("local", "local", ""),
		})
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client = dynamodb.NewFromConfig(awsCfg)
	}

	p := &DynamoPersister{
		client: client,
		config: cfg,
		logger: logger,
	}

	if cfg.Mode == DynamoModeLocal {
		if err := p.createTableIfNotExist(ctx); err != nil {
			return nil, err
		}
	}

	logger.Info().
		Str("mode", string(cfg.Mode)).
		Str("region", cfg.Region).
		Str("table", cfg.Table).
		Msg("persisting view state to DynamoDB")

	return p, nil
}

func (p *DynamoPersister) Load(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := p.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(p.config.Table),
		Key: map[string]dbtypes.AttributeValue{
			"StorageKey": &dbtypes.AttributeValueMemberS{Value: key},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get view state: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}

	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal view state: %w", err)
	}
	return item.Payload, true, nil
}

func (p *DynamoPersister) Save(ctx context.Context, key string, data []byte) error {
	item, err := attributevalue.MarshalMap(dynamoItem{
		StorageKey: key,
		Payload:    data,
		UpdatedAt:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal view state: %w", err)
	}

	_, err = p.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(p.config.Table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save view state: %w", err)
	}
	return nil
}

func (p *DynamoPersister) Close() error { return nil }

func (p *DynamoPersister) createTableIfNotExist(ctx context.Context) error {
	_, err := p.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(p.config.Table),
	})
	if err == nil {
		p.logger.Info().Str("table", p.config.Table).Msg("table already exists")
		return nil
	}

	_, err = p.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(p.config.Table),
		KeySchema: []dbtypes.KeySchemaElement{
			{AttributeName: aws.String("StorageKey"), KeyType: dbtypes.KeyTypeHash},
		},
		AttributeDefinitions: []dbtypes.AttributeDefinition{
			{AttributeName: aws.String("StorageKey"), AttributeType: dbtypes.ScalarAttributeTypeS},
		},
		BillingMode: dbtypes.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", p.config.Table, err)
	}
	p.logger.Info().Str("table", p.config.Table).Msg("table created")
	return nil
}
