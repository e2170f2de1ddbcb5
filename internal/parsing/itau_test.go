package parsing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const itauSample = `Itaú Cartões
Emissão: 15/03/2025
Vencimento: 10/04/2025

Total da fatura anterior  1.500,00
Pagamentos efetuados - 1.500,00
Lançamentos atuais  2.480,46
Total desta fatura  2.480,46

12/03  IFOOD IFD COMERCIO SAO PAULO BR  45,90
13/03  POSTO SHELL PORTO ALEGRE BR  200,00
20/02  MAGAZINE LUIZA  1.234,56
`

var _ = Describe("Itau", func() {
	var parser *Itau

	BeforeEach(func() {
		parser = NewItau()
	})

	Describe("CanParse", func() {
		It("should recognize an Itaú statement", func() {
			Expect(parser.CanParse(itauSample)).To(BeTrue())
		})

		It("should reject unrelated text", func() {
			Expect(parser.CanParse("Nubank fatura 2025")).To(BeFalse())
		})
	})

	Describe("parseText", func() {
		It("should extract the statement header", func() {
			st, err := parser.parseText(itauSample)

			Expect(err).NotTo(HaveOccurred())
			Expect(st.BankCode).To(Equal("itau"))
			Expect(st.StatementDate).To(Equal("2025-03-15"))
			Expect(st.DueDate).To(Equal("2025-04-10"))
			Expect(st.PreviousBalance).To(Equal("1500.00"))
			Expect(st.PaymentsReceived).To(Equal("1500.00"))
			Expect(st.Purchases).To(Equal("2480.46"))
			Expect(st.TotalAmount).To(Equal("2480.46"))
		})

		It("should extract transaction rows with the statement year applied", func() {
			st, err := parser.parseText(itauSample)

			Expect(err).NotTo(HaveOccurred())
			Expect(st.LineItems).To(HaveLen(3))

			Expect(st.LineItems[0].Date).To(Equal("2025-03-12"))
			Expect(st.LineItems[0].Amount).To(Equal("45.90"))
			Expect(st.LineItems[0].Type).To(Equal(TypePurchase))

			Expect(st.LineItems[2].Date).To(Equal("2025-02-20"))
			Expect(st.LineItems[2].Description).To(Equal("MAGAZINE LUIZA"))
			Expect(st.LineItems[2].Amount).To(Equal("1234.56"))
		})

		It("should strip OCR-split location suffixes from establishment names", func() {
			st, err := parser.parseText(itauSample)

			Expect(err).NotTo(HaveOccurred())
			Expect(st.LineItems[0].Description).To(Equal("IFOOD IFD COMERCIO"))
			Expect(st.LineItems[1].Description).To(Equal("POSTO SHELL"))
		})

		It("should fail on text without the statement markers", func() {
			_, err := parser.parseText("not a statement")
			Expect(err).To(HaveOccurred())
		})

		It("should fail when the issue date is missing", func() {
			_, err := parser.parseText("Itaú Cartões\nTotal desta fatura  100,00\n")
			Expect(err).To(HaveOccurred())
		})

		It("should fail when the total is missing", func() {
			_, err := parser.parseText("Itaú Cartões\nEmissão: 15/03/2025\nVencimento: 10/04/2025\n")
			Expect(err).To(HaveOccurred())
		})

		It("should accept the alternate total phrasing", func() {
			text := "Itaú Cartões\nEmissão: 15/03/2025\nVencimento: 10/04/2025\nO total da sua fatura é: R$ 980,10\n"

			st, err := parser.parseText(text)

			Expect(err).NotTo(HaveOccurred())
			Expect(st.TotalAmount).To(Equal("980.10"))
		})
	})
})

var _ = Describe("cleanEstablishmentName", func() {
	It("should drop category keywords the bank appends", func() {
		Expect(cleanEstablishmentName("PADARIA DO ZE restaurante")).To(Equal("PADARIA DO ZE"))
	})

	It("should collapse repeated whitespace", func() {
		Expect(cleanEstablishmentName("UBER   *TRIP")).To(Equal("UBER *TRIP"))
	})
})

var _ = Describe("Registry", func() {
	It("should resolve the built-in Itaú parser", func() {
		p, err := NewRegistry().ForBank("itau")

		Expect(err).NotTo(HaveOccurred())
		Expect(p.BankCode()).To(Equal("itau"))
	})

	It("should error for an unknown bank", func() {
		_, err := NewRegistry().ForBank("nubank")
		Expect(err).To(HaveOccurred())
	})

	It("should list supported banks", func() {
		Expect(NewRegistry().SupportedBanks()).To(ContainElement("itau"))
	})
})
