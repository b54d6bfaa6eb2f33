package turn

// Action is what a smart suggestion does when clicked.
type Action interface {
	Accept(v ActionVisitor) []Effect
}

// ActionVisitor handles every suggestion action. Adding an action means
// adding a method here, so every visitor must handle it.
type ActionVisitor interface {
	VisitQuoteRequest(QuoteRequest) []Effect
	VisitStyleConsultation(StyleConsultation) []Effect
	VisitProductInfo(ProductInfo) []Effect
	VisitInteractiveQA(InteractiveQA) []Effect
	VisitAppointmentBooking(AppointmentBooking) []Effect
	VisitGalleryView(GalleryView) []Effect
	VisitBusinessRedirect(BusinessRedirect) []Effect
}

type (
	QuoteRequest       struct{}
	StyleConsultation  struct{}
	ProductInfo        struct{}
	InteractiveQA      struct{}
	AppointmentBooking struct{ URL string }
	GalleryView        struct{ URL string }
	BusinessRedirect   struct{ URL string }
)

func (a QuoteRequest) Accept(v ActionVisitor) []Effect       { return v.VisitQuoteRequest(a) }
func (a StyleConsultation) Accept(v ActionVisitor) []Effect  { return v.VisitStyleConsultation(a) }
func (a ProductInfo) Accept(v ActionVisitor) []Effect        { return v.VisitProductInfo(a) }
func (a InteractiveQA) Accept(v ActionVisitor) []Effect      { return v.VisitInteractiveQA(a) }
func (a AppointmentBooking) Accept(v ActionVisitor) []Effect { return v.VisitAppointmentBooking(a) }
func (a GalleryView) Accept(v ActionVisitor) []Effect        { return v.VisitGalleryView(a) }
func (a BusinessRedirect) Accept(v ActionVisitor) []Effect   { return v.VisitBusinessRedirect(a) }

// Suggestion is one smart suggestion button. Its label is the dictionary
// text "suggestion.<id>.label".
type Suggestion struct {
	ID     string
	Action Action
}

// Links are the pages navigation suggestions open.
type Links struct {
	Appointment string `yaml:"appointment"`
	Gallery     string `yaml:"gallery"`
	Business    string `yaml:"business"`
}

// Suggestions returns the smart suggestions in display order.
func Suggestions(links Links) []Suggestion {
	return []Suggestion{
		{ID: "appointment", Action: AppointmentBooking{URL: links.Appointment}},
		{ID: "style", Action: StyleConsultation{}},
		{ID: "quote", Action: QuoteRequest{}},
		{ID: "gallery", Action: GalleryView{URL: links.Gallery}},
		{ID: "product", Action: ProductInfo{}},
		{ID: "qa", Action: InteractiveQA{}},
		{ID: "business", Action: BusinessRedirect{URL: links.Business}},
	}
}

// clickVisitor carries out a clicked suggestion on the machine.
type clickVisitor struct {
	m *Machine
}

func (v clickVisitor) VisitQuoteRequest(QuoteRequest) []Effect {
	v.m.openLeadForm()
	return nil
}

func (v clickVisitor) VisitStyleConsultation(StyleConsultation) []Effect {
	return v.m.sendCanned(v.m.text("suggestion.style.message"))
}

func (v clickVisitor) VisitProductInfo(ProductInfo) []Effect {
	lang := v.m.binding.Current()
	msg := v.m.dict.Render(lang, "suggestion.product.message", map[string]string{
		"Product": v.m.text("suggestion.product.default"),
	})
	return v.m.sendCanned(msg)
}

func (v clickVisitor) VisitInteractiveQA(InteractiveQA) []Effect {
	return v.m.sendCanned(v.m.text("suggestion.qa.message"))
}

func (v clickVisitor) VisitAppointmentBooking(a AppointmentBooking) []Effect {
	return []Effect{Navigate{URL: a.URL}}
}

func (v clickVisitor) VisitGalleryView(a GalleryView) []Effect {
	return []Effect{Navigate{URL: a.URL}}
}

func (v clickVisitor) VisitBusinessRedirect(a BusinessRedirect) []Effect {
	return []Effect{Navigate{URL: a.URL}}
}
