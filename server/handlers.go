package server

import (
	"net/http"
	"strings"

	"pdpl_assistant/assistant"
	"pdpl_assistant/render"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Stage endpoints ---

type questionReq struct {
	Question string `json:"question"`
}

type scopeResp struct {
	InScope bool `json:"in_scope"`
}

func (s *Server) handleScope(w http.ResponseWriter, r *http.Request) {
	var req questionReq
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.respondError(w, r, newValidationError("question is required"))
		return
	}
	in, err := s.agent.Scope.Classify(r.Context(), req.Question)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scopeResp{InScope: in})
}

type extractReq struct {
	Text string `json:"text"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractReq
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	out, err := s.agent.References.Extract(r.Context(), req.Text)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type translateReq struct {
	Text string `json:"text"`
	From string `json:"from"`
	To   string `json:"to"`
}

type translateResp struct {
	Translation string `json:"translation"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateReq
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	from, err := assistant.ParseLanguage(req.From)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	to, err := assistant.ParseLanguage(req.To)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var out string
	switch {
	case from == to:
		out = req.Text
	case to == assistant.English:
		out, err = s.agent.Translator.ToEnglish(r.Context(), from, req.Text)
	case from == assistant.English:
		out, err = s.agent.Translator.FromEnglish(r.Context(), to, req.Text)
	default:
		err = newValidationError("one side of a translation must be English")
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, translateResp{Translation: out})
}

type summaryReq struct {
	Question string   `json:"question"`
	History  []string `json:"history"`
}

type summaryResp struct {
	Summary string `json:"summary"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var req summaryReq
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	summary, err := s.agent.Summarizer.Summarize(r.Context(), req.Question, req.History)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResp{Summary: summary})
}

type contextReq struct {
	QuestionSummary string `json:"question_summary"`
}

type contextResp struct {
	Context  []assistant.ContextItem      `json:"context"`
	Mentions []assistant.ReferenceMention `json:"mentions"`
	Degraded bool                         `json:"degraded"`
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	var req contextReq
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	got, err := s.agent.Retriever.Retrieve(r.Context(), req.QuestionSummary)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contextResp{Context: got.Items, Mentions: got.Mentions, Degraded: got.Degraded})
}

type answerReq struct {
	Question string                  `json:"question"`
	History  []string                `json:"history"`
	Context  []assistant.ContextItem `json:"context"`
}

type answerResp struct {
	assistant.AnswerResult
	References []string `json:"references"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerReq
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	for _, it := range req.Context {
		if it.Article < 1 || it.Paragraph < 1 {
			s.respondError(w, r, newValidationError("context article and paragraph numbers must be >= 1"))
			return
		}
	}
	res, err := s.agent.Answers.Answer(r.Context(), req.Question, req.History, req.Context)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answerResp{AnswerResult: res, References: render.References(res.Citations)})
}

// --- Full pipeline ---

type askReq struct {
	Question string                       `json:"question"`
	Language string                       `json:"language"`
	History  []assistant.ConversationTurn `json:"history"`
}

type askResp struct {
	assistant.Outcome
	SessionID  string   `json:"session_id,omitempty"`
	References []string `json:"references"`
	HTML       string   `json:"html"`
}

func (s *Server) outcomeResponse(out assistant.Outcome) (askResp, error) {
	html, err := render.AnswerHTML(out.Answer, out.Language)
	if err != nil {
		return askResp{}, err
	}
	return askResp{Outcome: out, References: render.References(out.Answer.Citations), HTML: html}, nil
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askReq
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	lang, err := assistant.ParseLanguage(req.Language)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	out, err := s.agent.Ask(r.Context(), assistant.Query{Question: req.Question, Language: lang, History: req.History})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	resp, err := s.outcomeResponse(out)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Chat sessions ---

type sessionCreateReq struct {
	Language string `json:"language"`
}

type sessionResp struct {
	SessionID string                       `json:"session_id"`
	Language  assistant.Language           `json:"language"`
	History   []assistant.ConversationTurn `json:"history"`
}

type messageReq struct {
	Question string `json:"question"`
}

type languageReq struct {
	Language string `json:"language"`
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*assistant.Session, bool) {
	sess, ok := s.store.get(r.PathValue("id"))
	if !ok {
		s.respondError(w, r, newNotFoundError("session not found"))
	}
	return sess, ok
}

func snapshot(sess *assistant.Session) sessionResp {
	lang, hist := sess.Snapshot()
	return sessionResp{SessionID: sess.ID, Language: lang, History: hist}
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req sessionCreateReq
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.respondError(w, r, err)
			return
		}
	}
	lang, err := assistant.ParseLanguage(req.Language)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	sess := assistant.NewSession(newSessionID(), lang, s.agent, s.opts.MaxHistoryTurns)
	s.store.set(sess)
	writeJSON(w, http.StatusCreated, snapshot(sess))
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snapshot(sess))
}

func (s *Server) handleSessionMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req messageReq
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	out, err := sess.Ask(r.Context(), req.Question)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	resp, err := s.outcomeResponse(out)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	resp.SessionID = sess.ID
	writeJSON(w, http.StatusOK, resp)
}

// handleSessionLanguage switches language; a change clears the conversation.
func (s *Server) handleSessionLanguage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req languageReq
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	lang, err := assistant.ParseLanguage(req.Language)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	sess.SetLanguage(lang)
	writeJSON(w, http.StatusOK, snapshot(sess))
}
