package statement

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/TiagoAMarek/finances-sub002/internal/parsing"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		parsers     *mockParsers
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	}

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		parsers = &mockParsers{parser: &fakeParser{}}
		auth = BasicAuth{}

		db.cards["card-1"] = &CreditCard{ID: "card-1", OwnerID: "owner-1", CurrentBill: "0.00"}

		service = NewServiceWithDeps(db, storage, parsers, newMockCategorizer(), &mockIDGenerator{}, &defaultTimeSource{})
		server = NewServerWithMux(service, auth, "owner-1", http.NewServeMux())
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	postJSON := func(path string, body any) *http.Response {
		data, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.Post(ghttpServer.URL()+path, "application/json", bytes.NewReader(data))
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	Describe("handleUploadStatement", func() {
		var uploadBody map[string]string

		BeforeEach(func() {
			uploadBody = map[string]string{
				"credit_card_id": "card-1",
				"bank_code":      "itau",
				"file_name":      "fatura.pdf",
				"file_data":      base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 fake")),
			}
		})

		It("should create a pending statement", func() {
			resp := postJSON("/api/statements", uploadBody)
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var st CreditCardStatement
			Expect(json.NewDecoder(resp.Body).Decode(&st)).To(Succeed())
			Expect(st.Status).To(Equal(StatusPending))
			Expect(st.CreditCardID).To(Equal("card-1"))
		})

		It("should reject a malformed body", func() {
			resp, err := http.Post(ghttpServer.URL()+"/api/statements", "application/json", bytes.NewReader([]byte("not json")))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should reject invalid base64 file data", func() {
			uploadBody["file_data"] = "not base64!!!"

			resp := postJSON("/api/statements", uploadBody)
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should map a missing card to 404", func() {
			uploadBody["credit_card_id"] = "nonexistent"

			resp := postJSON("/api/statements", uploadBody)
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("should map a repeated upload to 409", func() {
			sum := sha256.Sum256([]byte("%PDF-1.4 fake"))
			db.statements["st-0"] = &CreditCardStatement{
				ID:           "st-0",
				OwnerID:      "owner-1",
				CreditCardID: "card-1",
				FileHash:     hex.EncodeToString(sum[:]),
			}

			resp := postJSON("/api/statements", uploadBody)
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		})
	})

	Describe("handleListStatements", func() {
		BeforeEach(func() {
			db.statements["st-1"] = &CreditCardStatement{ID: "st-1", OwnerID: "owner-1", Status: StatusPending}
			db.statements["st-2"] = &CreditCardStatement{ID: "st-2", OwnerID: "owner-2", Status: StatusPending}
		})

		It("should return only the configured owner's statements", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/statements")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var statements []*CreditCardStatement
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &statements)).NotTo(HaveOccurred())
			Expect(statements).To(HaveLen(1))
			Expect(statements[0].ID).To(Equal("st-1"))
		})

		It("should set Content-Type to application/json", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/statements")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
		})
	})

	Describe("handleGetStatement", func() {
		BeforeEach(func() {
			db.statements["st-1"] = &CreditCardStatement{ID: "st-1", OwnerID: "owner-1", Status: StatusReviewed}
			db.lineItems["st-1"] = []*StatementLineItem{{ID: "li-1", StatementID: "st-1"}}
		})

		It("should return the statement with line items", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/statements/st-1")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var details StatementWithLineItems
			Expect(json.NewDecoder(resp.Body).Decode(&details)).To(Succeed())
			Expect(details.ID).To(Equal("st-1"))
			Expect(details.LineItems).To(HaveLen(1))
		})

		It("should return 404 for an unknown statement", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/statements/nonexistent")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleAnnotateStatement", func() {
		BeforeEach(func() {
			db.statements["st-1"] = &CreditCardStatement{
				ID:           "st-1",
				OwnerID:      "owner-1",
				CreditCardID: "card-1",
				BankCode:     "itau",
				FilePath:     "st-1_fatura.pdf",
				Status:       StatusPending,
			}
			storage.files["st-1_fatura.pdf"] = []byte("%PDF-1.4 fake")
			parsers.parser.parsed = &parsing.ParsedStatement{
				BankCode:      "itau",
				StatementDate: "2025-03-15",
				DueDate:       "2025-04-10",
				TotalAmount:   "45.90",
				LineItems: []parsing.ParsedLineItem{
					{Date: "2025-03-12", Description: "IFOOD IFD", Amount: "45.90", Type: parsing.TypePurchase},
				},
			}
		})

		It("should annotate and return the summary", func() {
			resp := postJSON("/api/statements/st-1/annotate", nil)
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result AnnotateResult
			Expect(json.NewDecoder(resp.Body).Decode(&result)).To(Succeed())
			Expect(result.TotalLineItems).To(Equal(1))
			Expect(result.Statement.Status).To(Equal(StatusReviewed))
		})

		It("should return 409 for an imported statement", func() {
			db.statements["st-1"].Status = StatusImported

			resp := postJSON("/api/statements/st-1/annotate", nil)
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		})
	})

	Describe("handleImportStatement", func() {
		BeforeEach(func() {
			db.statements["st-1"] = &CreditCardStatement{
				ID:           "st-1",
				OwnerID:      "owner-1",
				CreditCardID: "card-1",
				Status:       StatusReviewed,
			}
			db.lineItems["st-1"] = []*StatementLineItem{
				{ID: "li-1", StatementID: "st-1", Date: "2025-03-12", Description: "IFOOD IFD", Amount: "45.90", Type: parsing.TypePurchase},
			}
		})

		It("should import and return created transaction IDs", func() {
			resp := postJSON("/api/statements/st-1/import", ImportOptions{})
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result ImportResult
			Expect(json.NewDecoder(resp.Body).Decode(&result)).To(Succeed())
			Expect(result.CreatedTransactionIDs).To(HaveLen(1))
		})

		It("should return 409 when the statement is still pending", func() {
			db.statements["st-1"].Status = StatusPending

			resp := postJSON("/api/statements/st-1/import", ImportOptions{})
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		})

		It("should reject a malformed body", func() {
			resp, err := http.Post(ghttpServer.URL()+"/api/statements/st-1/import", "application/json", bytes.NewReader([]byte("not json")))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("handleCancelStatement", func() {
		BeforeEach(func() {
			db.statements["st-1"] = &CreditCardStatement{ID: "st-1", OwnerID: "owner-1", Status: StatusPending}
		})

		It("should cancel a pending statement", func() {
			resp := postJSON("/api/statements/st-1/cancel", nil)
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var st CreditCardStatement
			Expect(json.NewDecoder(resp.Body).Decode(&st)).To(Succeed())
			Expect(st.Status).To(Equal(StatusCancelled))
		})

		It("should return 409 for an imported statement", func() {
			db.statements["st-1"].Status = StatusImported

			resp := postJSON("/api/statements/st-1/cancel", nil)
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		})
	})

	Describe("handleCreateCreditCard", func() {
		It("should create a card for the configured owner", func() {
			resp := postJSON("/api/cards", map[string]string{"name": "Gold", "limit": "5000.00"})
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var card CreditCard
			Expect(json.NewDecoder(resp.Body).Decode(&card)).To(Succeed())
			Expect(card.OwnerID).To(Equal("owner-1"))
			Expect(card.CurrentBill).To(Equal("0.00"))
		})

		It("should reject an empty name", func() {
			resp := postJSON("/api/cards", map[string]string{"limit": "5000.00"})
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("handleCreateCategory", func() {
		It("should create a category", func() {
			resp := postJSON("/api/categories", map[string]string{"name": "Alimentação", "type": "expense"})
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var category Category
			Expect(json.NewDecoder(resp.Body).Decode(&category)).To(Succeed())
			Expect(category.Type).To(Equal("expense"))
		})
	})

	Describe("authentication", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "user", Password: "secret"}
			server = NewServerWithMux(service, auth, "owner-1", http.NewServeMux())
			setupServer()
		})

		It("should reject requests without credentials", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/statements")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
		})

		It("should reject wrong credentials", func() {
			req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/statements", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("user", "wrong")

			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("should accept valid credentials", func() {
			req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/statements", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("user", "secret")

			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("CORS", func() {
		It("should answer preflight requests", func() {
			req, err := http.NewRequest("OPTIONS", ghttpServer.URL()+"/api/statements", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})
})
