package search

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	catalogv1 "pubcat/api/catalog/v1"
	"pubcat/internal/publication"
	"pubcat/internal/storage"
)

// Client ходит в catalog-server по gRPC и реализует Searcher
type Client struct {
	client *catalogv1.CatalogClient
	conn   *grpc.ClientConn
}

// Dial создает клиента к серверу каталога по адресу host:port
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{client: catalogv1.NewCatalogClient(conn), conn: conn}, nil
}

// Close закрывает gRPC соединение
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Conn отдает соединение, например для health-проверки
func (c *Client) Conn() *grpc.ClientConn { return c.conn }

func (c *Client) Search(ctx context.Context, query string, from, size int) (*SearchResult, error) {
	in, err := catalogv1.Encode(catalogv1.SearchRequest{Query: query, From: from, Size: size})
	if err != nil {
		return nil, err
	}
	out, err := c.client.Search(ctx, in)
	if err != nil {
		return nil, fromStatus(err)
	}
	var res SearchResult
	if err := catalogv1.Decode(out, &res); err != nil {
		return nil, err
	}
	if res.Items == nil {
		res.Items = []PublicationDTO{}
	}
	return &res, nil
}

func (c *Client) Get(ctx context.Context, id string) (publication.Record, error) {
	var r publication.Record
	in, err := catalogv1.Encode(catalogv1.GetRequest{ID: id})
	if err != nil {
		return r, err
	}
	out, err := c.client.Get(ctx, in)
	if err != nil {
		return r, fromStatus(err)
	}
	err = catalogv1.Decode(out, &r)
	return r, err
}

// fromStatus возвращает пакетные sentinel-ошибки вместо gRPC статусов
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", storage.ErrNotFound, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrBadQuery, st.Message())
	}
	return err
}
