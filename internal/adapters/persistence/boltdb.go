package persistence

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	boltdb "github.com/andrew-solarstorm/bolt-db"
	"github.com/bytedance/sonic"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/swap-engine/internal/domain"
)

const (
	TokensBucket = "tokens"

	DefaultDBPath = "./data/swap-engine.db"
)

// StoredToken is the on-disk shape of one token's metadata. Amounts are
// decimal strings so the JSON survives tokens with supplies past 2^64.
type StoredToken struct {
	ChainID     uint64 `json:"chainId"`
	Address     string `json:"address"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply string `json:"totalSupply,omitempty"`
}

type Storage struct {
	db     *boltdb.BoltDatabase
	dbPath string
}

func NewStorage(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	os.MkdirAll(filepath.Dir(dbPath), 0755)

	db := boltdb.NewBoltDatabase(dbPath)
	if db == nil {
		return nil, fmt.Errorf("failed to open database at %s", dbPath)
	}

	log.Info().Str("path", dbPath).Msg("[tokenStorage] opened database")

	return &Storage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Storage) SaveToken(token *domain.TokenMetadata) error {
	data, err := sonic.Marshal(tokenToStored(token))
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	return s.db.Set(TokensBucket, []byte(token.Address.Hex()), data)
}

func (s *Storage) SaveTokenBatch(tokens []*domain.TokenMetadata) error {
	if len(tokens) == 0 {
		return nil
	}

	batch := s.db.NewBatch()
	for _, token := range tokens {
		data, err := sonic.Marshal(tokenToStored(token))
		if err != nil {
			return fmt.Errorf("failed to marshal token %s: %w", token.Address.Hex(), err)
		}

		value := data
		op := &boltdb.WriteOperation{
			Bucket: []byte(TokensBucket),
			Key:    []byte(token.Address.Hex()),
			Value:  &value,
			Op:     boltdb.OpSet,
		}
		if err := batch.Add(op); err != nil {
			return fmt.Errorf("failed to add token %s to batch: %w", token.Address.Hex(), err)
		}
	}

	if err := batch.Execute(); err != nil {
		log.Error().Err(err).Int("count", len(tokens)).Msg("[tokenStorage] FAILED to execute batch")
		return err
	}

	log.Info().Int("count", len(tokens)).Msg("[tokenStorage] saved token batch")
	return nil
}

func (s *Storage) LoadAllTokens() ([]*domain.TokenMetadata, error) {
	data, err := s.db.List(TokensBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}

	tokens := make([]*domain.TokenMetadata, 0, len(data))
	failed := 0
	for address, value := range data {
		var stored StoredToken
		if err := sonic.Unmarshal(value, &stored); err != nil {
			log.Warn().Str("address", address).Err(err).Msg("[tokenStorage] failed to unmarshal token, skipping")
			failed++
			continue
		}
		tokens = append(tokens, storedToToken(&stored))
	}

	if failed > 0 {
		log.Error().
			Int("total_in_db", len(data)).
			Int("loaded", len(tokens)).
			Int("failed", failed).
			Msg("[tokenStorage] token loading completed with errors")
	} else {
		log.Info().
			Int("total_in_db", len(data)).
			Int("loaded", len(tokens)).
			Msg("[tokenStorage] token loading completed successfully")
	}

	return tokens, nil
}

func (s *Storage) GetTokenCount() (int, error) {
	data, err := s.db.List(TokensBucket)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

func tokenToStored(token *domain.TokenMetadata) *StoredToken {
	supply := ""
	if token.TotalSupply != nil {
		supply = token.TotalSupply.String()
	}
	return &StoredToken{
		ChainID:     token.ChainID,
		Address:     token.Address.Hex(),
		Symbol:      token.Symbol,
		Name:        token.Name,
		Decimals:    token.Decimals,
		TotalSupply: supply,
	}
}

func storedToToken(stored *StoredToken) *domain.TokenMetadata {
	var supply *big.Int
	if stored.TotalSupply != "" {
		supply = new(big.Int)
		supply.SetString(stored.TotalSupply, 10)
	}
	return &domain.TokenMetadata{
		ChainID:     stored.ChainID,
		Address:     common.HexToAddress(stored.Address),
		Symbol:      stored.Symbol,
		Name:        stored.Name,
		Decimals:    stored.Decimals,
		TotalSupply: supply,
	}
}
