// seed-docs uploads fixture loan documents against a running server, for
// local development and manual testing.
//
// Usage:
//
//	go run ./scripts/seed-docs                       # targets http://localhost:8111
//	SEED_TARGET=http://localhost:9000 go run ./scripts/seed-docs
//	SEED_METHOD=langextract go run ./scripts/seed-docs
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"time"
)

type seedDoc struct {
	filename string
	body     string
}

var seedDocs = []seedDoc{
	{
		filename: "w2-john-smith-2024.txt",
		body: `Form W-2 Wage and Tax Statement 2024

Employee: JOHN A SMITH
Employee SSN: 123-45-6789
Address: 42 Maple Street, Springfield, IL 62704

Employer: ACME MANUFACTURING INC
Box 1 Wages, tips, other compensation: 85,400.00
Direct deposit account: 4455667788 (First National Bank)
`,
	},
	{
		filename: "joint-application-gonzalez.txt",
		body: `UNIFORM RESIDENTIAL LOAN APPLICATION

Borrower: Maria Gonzalez, SSN 987-65-4321, phone (217) 555-0188
Address: 9 Birch Lane, Urbana, IL 61801
Monthly base income: 6,250.00 (Urbana School District)

Co-Borrower: Diego Gonzalez, SSN 876-54-3210, phone (217) 555-0199
Monthly base income: 4,100.00 (Prairie Logistics LLC)

Joint checking account 1122334455 at Busey Bank
`,
	},
	{
		filename: "tax-return-chen-2023.txt",
		body: `FORM 1040 — TAX YEAR 2023

Taxpayer: Wei Chen, SSN 555-44-3333
Home address: 18 Harbor View Apt 3C, Chicago, IL 60614
Line 1 Wages: 78,500.00 (Lakeside Analytics)

SCHEDULE C (2023)
Proprietor: Wei Chen
Net profit: 14,200.00 (consulting, self-employment)
`,
	},
}

func main() {
	target := os.Getenv("SEED_TARGET")
	if target == "" {
		target = "http://localhost:8111"
	}
	method := os.Getenv("SEED_METHOD")

	client := &http.Client{Timeout: 5 * time.Minute}

	for _, doc := range seedDocs {
		id, status, err := upload(client, target, doc, method)
		if err != nil {
			log.Printf("✗ %s: %v", doc.filename, err)
			continue
		}
		log.Printf("✓ %s → %s (%s)", doc.filename, id, status)
	}
}

func upload(client *http.Client, target string, doc seedDoc, method string) (id, status string, err error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", doc.filename)
	if err != nil {
		return "", "", err
	}
	if _, err := fw.Write([]byte(doc.body)); err != nil {
		return "", "", err
	}
	if err := mw.Close(); err != nil {
		return "", "", err
	}

	endpoint := target + "/api/documents"
	if method != "" {
		endpoint += "?method=" + url.QueryEscape(method)
	}
	req, err := http.NewRequest(http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	switch resp.StatusCode {
	case http.StatusCreated:
	case http.StatusConflict:
		return "", "already uploaded", nil
	default:
		return "", "", fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", "", fmt.Errorf("decode response: %w", err)
	}
	return created.ID, created.Status, nil
}
