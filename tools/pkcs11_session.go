package tools

import (
	"bytes"
	"context"
	"crypto"
	"encoding/asn1"
	"encoding/binary"
	"fmt"
	"log"
	"sync"

	"github.com/miekg/pkcs11"
)

// PKCS11Config contains the arguments needed to open a session on a token.
type PKCS11Config struct {
	Lib       string // PKCS#11 library path
	Pin       string // user pin
	Label     string // CKA_LABEL of the key pair
	ID        string // CKA_ID of the key pair
	Mechanism string // raw protocol mechanism used to sign digests
	Debug     bool   // log every raw command
}

// PKCS11Session represents a PKCS#11 session. It includes the module, the session
// handle and the label and id used to find or create the key pair.
type PKCS11Session struct {
	libPath    string               // Library Path
	Log        *log.Logger          // Logger
	P11Context *pkcs11.Ctx          // PKCS#11 Context
	Handle     pkcs11.SessionHandle // PKCS11Session Handle
	Label      string               // Key Label
	ID         string               // Key ID
	Mechanism  string               // Raw protocol mechanism
	Hash       crypto.Hash          // Digest used by SignMessage

	mu     sync.Mutex // serialises SignInit/Sign pairs
	signer *PKCS11Signer
	client *HSMClient
}

// NewPKCS11Session opens a read-write session on the first slot with a token and
// logs in as user. The module is loaded once per process.
func NewPKCS11Session(conf *PKCS11Config, log *log.Logger) (*PKCS11Session, error) {
	if conf == nil {
		return nil, &ConfigurationError{Kind: "pkcs11 configuration", Value: ""}
	}
	p, err := pkcs11Module(conf.Lib)
	if err != nil {
		return nil, err
	}
	slots, err := p.GetSlotList(true)
	if err != nil {
		return nil, fmt.Errorf("error checking slots: %s", err)
	}
	if len(slots) == 0 {
		return nil, fmt.Errorf("no slots with a token found in %s", conf.Lib)
	}
	handle, err := p.OpenSession(slots[0], pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		return nil, fmt.Errorf("error creating session: %s", err)
	}
	if err := p.Login(handle, pkcs11.CKU_USER, conf.Pin); err != nil {
		if perr, ok := err.(pkcs11.Error); !ok || perr != pkcs11.CKR_USER_ALREADY_LOGGED_IN {
			_ = p.CloseSession(handle)
			return nil, fmt.Errorf("error login with provided key: %s", err)
		}
	}
	session := &PKCS11Session{
		libPath:    conf.Lib,
		Log:        log,
		P11Context: p,
		Handle:     handle,
		Label:      conf.Label,
		ID:         conf.ID,
		Mechanism:  conf.Mechanism,
		Hash:       crypto.SHA256,
	}
	session.client = &HSMClient{
		Transport: &PKCS11Transport{Session: session},
		Log:       log,
		Debug:     conf.Debug,
	}
	return session, nil
}

// Client returns the raw command client bound to this session.
func (session *PKCS11Session) Client() *HSMClient {
	return session.client
}

// Signer returns the signer of the key pair found or imported in this session.
func (session *PKCS11Session) Signer() crypto.Signer {
	if session.signer == nil {
		return nil
	}
	return session.signer
}

// SignMessage hashes and signs message inside the token.
func (session *PKCS11Session) SignMessage(message []byte) ([]byte, error) {
	if session.signer == nil {
		return nil, fmt.Errorf("session has no key pair")
	}
	mechanism, ok := hashMechanisms[session.Hash]
	if !ok {
		return nil, &ConfigurationError{Kind: "hash", Value: session.Hash.String()}
	}
	raw, err := session.sign(mechanism, session.signer.SK, message)
	if err != nil {
		return nil, err
	}
	return rawToASN1(raw)
}

// SignDigest signs a digest through the raw command protocol.
func (session *PKCS11Session) SignDigest(digest []byte) ([]byte, error) {
	if session.signer == nil {
		return nil, fmt.Errorf("session has no key pair")
	}
	return session.client.Sign(context.Background(), uint64(session.signer.SK), digest, session.Mechanism)
}

// FindKeyPair looks for the key pair with the session label and id. If the token
// holds the public half too, it must match public.
func (session *PKCS11Session) FindKeyPair(public *PublicKey) (*PKCS11Signer, error) {
	if session == nil || session.P11Context == nil {
		return nil, fmt.Errorf("session not initialized")
	}
	template := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, session.Label),
		pkcs11.NewAttribute(pkcs11.CKA_ID, []byte(session.ID)),
	}
	classTemplate := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, nil),
	}
	objects, err := session.findObject(template)
	if err != nil {
		return nil, err
	}
	signer := &PKCS11Signer{Session: session, Key: public}
	var foundSK, foundPK int
	for _, object := range objects {
		attr, err := session.P11Context.GetAttributeValue(session.Handle, object, classTemplate)
		if err != nil {
			return nil, fmt.Errorf("cannot get attributes: %s", err)
		}
		switch uint(binary.LittleEndian.Uint32(attr[0].Value)) {
		case pkcs11.CKO_PRIVATE_KEY:
			signer.SK = object
			foundSK++
		case pkcs11.CKO_PUBLIC_KEY:
			signer.PK = object
			foundPK++
		}
	}
	switch {
	case foundSK == 0:
		return nil, ErrNoValidKeys
	case foundSK > 1 || foundPK > 1:
		return nil, fmt.Errorf("more than one key pair with label=%s and id=%s", session.Label, session.ID)
	}
	if foundPK == 1 && public != nil {
		point, err := session.publicPoint(signer.PK)
		if err != nil {
			return nil, err
		}
		expected, err := public.Bytes()
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(point, expected) {
			return nil, fmt.Errorf("token key with label=%s and id=%s does not match the public key resource", session.Label, session.ID)
		}
	}
	session.Log.Printf("found key pair label=%s id=%s", session.Label, session.ID)
	session.signer = signer
	return signer, nil
}

// ImportKeyPair stores key in the token under the session label and id, replacing
// any key pair already stored there.
func (session *PKCS11Session) ImportKeyPair(key *PrivateKey) (*PKCS11Signer, error) {
	if session == nil || session.P11Context == nil {
		return nil, fmt.Errorf("session not initialized")
	}
	if err := session.destroyObjects(true); err != nil {
		return nil, err
	}
	ecParams, err := key.Curve().ECParams()
	if err != nil {
		return nil, err
	}
	public := key.PublicKey()
	point, err := public.Bytes()
	if err != nil {
		return nil, err
	}
	ecPoint, err := asn1.Marshal(point)
	if err != nil {
		return nil, err
	}
	privateKeyTemplate := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PRIVATE_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_EC),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, session.Label),
		pkcs11.NewAttribute(pkcs11.CKA_ID, []byte(session.ID)),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, true),
		pkcs11.NewAttribute(pkcs11.CKA_SIGN, true),
		pkcs11.NewAttribute(pkcs11.CKA_SENSITIVE, true),
		pkcs11.NewAttribute(pkcs11.CKA_EC_PARAMS, ecParams),
		pkcs11.NewAttribute(pkcs11.CKA_VALUE, key.Bytes()),
	}
	publicKeyTemplate := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PUBLIC_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_EC),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, session.Label),
		pkcs11.NewAttribute(pkcs11.CKA_ID, []byte(session.ID)),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, true),
		pkcs11.NewAttribute(pkcs11.CKA_VERIFY, true),
		pkcs11.NewAttribute(pkcs11.CKA_EC_PARAMS, ecParams),
		pkcs11.NewAttribute(pkcs11.CKA_EC_POINT, ecPoint),
	}
	sk, err := session.P11Context.CreateObject(session.Handle, privateKeyTemplate)
	if err != nil {
		return nil, fmt.Errorf("cannot import private key: %s", err)
	}
	pk, err := session.P11Context.CreateObject(session.Handle, publicKeyTemplate)
	if err != nil {
		return nil, fmt.Errorf("cannot import public key: %s", err)
	}
	session.Log.Printf("imported %s key pair with label=%s and id=%s", key.Curve(), session.Label, session.ID)
	session.signer = &PKCS11Signer{Session: session, SK: sk, PK: pk, Key: public}
	return session.signer, nil
}

// DestroyAllKeys destroys all the keys using the label defined in the session struct.
func (session *PKCS11Session) DestroyAllKeys() error {
	return session.destroyObjects(false)
}

func (session *PKCS11Session) destroyObjects(onlyID bool) error {
	if session == nil || session.P11Context == nil {
		return fmt.Errorf("session not initialized")
	}
	deleteTemplate := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, session.Label),
	}
	if onlyID {
		deleteTemplate = append(deleteTemplate, pkcs11.NewAttribute(pkcs11.CKA_ID, []byte(session.ID)))
	}
	objects, err := session.findObject(deleteTemplate)
	if err != nil {
		return err
	}
	if len(objects) == 0 {
		return nil
	}
	session.Log.Printf("keys found. Deleting...")
	foundDeleteTemplate := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, nil),
		pkcs11.NewAttribute(pkcs11.CKA_ID, nil),
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, nil),
	}
	for _, object := range objects {
		attr, err := session.P11Context.GetAttributeValue(session.Handle, object, foundDeleteTemplate)
		if err != nil {
			session.Log.Printf("cannot read key attributes: %s", err)
			continue
		}
		class := "unknown"
		switch uint(attr[2].Value[0]) {
		case pkcs11.CKO_PUBLIC_KEY:
			class = "public"
		case pkcs11.CKO_PRIVATE_KEY:
			class = "private"
		}
		session.Log.Printf("deleting key with label=%s, id=%s and type=%s", string(attr[0].Value), string(attr[1].Value), class)
		if e := session.P11Context.DestroyObject(session.Handle, object); e != nil {
			session.Log.Printf("destroy key failed: %s", e)
		}
	}
	session.signer = nil
	return nil
}

// End finishes a session execution, logging out and closing the session. The module
// stays initialized for other sessions of the process.
func (session *PKCS11Session) End() error {
	if session.P11Context == nil {
		return fmt.Errorf("session not initialized")
	}
	if err := session.P11Context.Logout(session.Handle); err != nil {
		if perr, ok := err.(pkcs11.Error); !ok || perr != pkcs11.CKR_USER_NOT_LOGGED_IN {
			return err
		}
	}
	if err := session.P11Context.CloseSession(session.Handle); err != nil {
		return err
	}
	session.P11Context = nil
	return nil
}

// findObject returns an object from the HSM following an specific template.
// It returns at most 1024 objects.
// If it fails, it returns a null array and an error.
func (session *PKCS11Session) findObject(template []*pkcs11.Attribute) ([]pkcs11.ObjectHandle, error) {
	if session == nil || session.P11Context == nil {
		return nil, fmt.Errorf("session not initialized")
	}
	if err := session.P11Context.FindObjectsInit(session.Handle, template); err != nil {
		return nil, err
	}
	obj, _, err := session.P11Context.FindObjects(session.Handle, 1024)
	if err != nil {
		_ = session.P11Context.FindObjectsFinal(session.Handle)
		return nil, err
	}
	if err := session.P11Context.FindObjectsFinal(session.Handle); err != nil {
		return nil, err
	}
	return obj, nil
}

// publicPoint returns the uncompressed point of a public key object.
func (session *PKCS11Session) publicPoint(pk pkcs11.ObjectHandle) ([]byte, error) {
	attr, err := session.P11Context.GetAttributeValue(session.Handle, pk, []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_EC_POINT, nil),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot get public key point: %s", err)
	}
	var point []byte
	if _, err := asn1.Unmarshal(attr[0].Value, &point); err != nil {
		// Some modules return the raw point.
		return attr[0].Value, nil
	}
	return point, nil
}
