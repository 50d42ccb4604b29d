/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"forge-market-go/internal/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

type tokenConfig struct {
	Mint   string `yaml:"mint"`
	Symbol string `yaml:"symbol"`
	Asset  string `yaml:"asset"`
	Scale  string `yaml:"scale"`
}

type tokensConfig struct {
	Tokens []tokenConfig `yaml:"tokens"`
}

// TokenRoutes maps a token mint to the balance a deposit of it credits
type TokenRoutes map[string]models.TokenRoute

// Lookup returns the route for mint, if the token is accepted
func (r TokenRoutes) Lookup(mint string) (models.TokenRoute, bool) {
	route, ok := r[mint]
	return route, ok
}

func LoadTokenRoutes(tokensFile string) (TokenRoutes, error) {
	var tokensPath string
	if filepath.IsAbs(tokensFile) {
		tokensPath = tokensFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		tokensPath = filepath.Join(wd, tokensFile)
	}

	data, err := os.ReadFile(tokensPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", tokensFile, err)
	}

	return ParseTokenRoutes(data)
}

// ParseTokenRoutes decodes and validates a tokens document. A missing scale
// defaults to 1; presale routes never credit a balance so their scale is ignored.
func ParseTokenRoutes(data []byte) (TokenRoutes, error) {
	var config tokensConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse tokens: %w", err)
	}

	routes := make(TokenRoutes, len(config.Tokens))
	for i, token := range config.Tokens {
		if token.Mint == "" {
			return nil, fmt.Errorf("token at index %d missing mint", i)
		}
		if _, dup := routes[token.Mint]; dup {
			return nil, fmt.Errorf("token %s listed more than once", token.Mint)
		}

		switch token.Asset {
		case models.AssetPoints, models.AssetForgeStake, models.AssetPresale:
		default:
			return nil, fmt.Errorf("token %s has unknown asset %q", token.Mint, token.Asset)
		}

		scale := decimal.NewFromInt(1)
		if token.Scale != "" {
			parsed, err := decimal.NewFromString(token.Scale)
			if err != nil {
				return nil, fmt.Errorf("token %s has invalid scale %q: %w", token.Mint, token.Scale, err)
			}
			if !parsed.IsPositive() {
				return nil, fmt.Errorf("token %s scale must be positive", token.Mint)
			}
			scale = parsed
		}

		routes[token.Mint] = models.TokenRoute{
			Mint:   token.Mint,
			Symbol: token.Symbol,
			Asset:  token.Asset,
			Scale:  scale,
		}
	}

	if len(routes) == 0 {
		return nil, fmt.Errorf("no tokens configured")
	}
	return routes, nil
}
